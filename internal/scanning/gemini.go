package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/zombor/receipt-scanner/internal/extract"
)

// analyzePrompt asks the model for the structured fields of already-transcribed receipt text
const analyzePrompt = `You are an expert at analyzing receipt text. Extract the merchant name, total amount, date, items with prices, tax, subtotal, receipt number and address from the receipt text below.

Return ONLY valid JSON in this exact format:
{
  "merchant": "Store Name",
  "total": 0.00,
  "date": "YYYY-MM-DD",
  "items": [{"name": "Item", "price": 0.00, "quantity": 1}],
  "tax": 0.00,
  "subtotal": 0.00,
  "receiptNumber": "",
  "address": ""
}

Important:
- Amounts must be numbers (not strings), representing dollars and cents
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks

Receipt text:
`

// Gemini implements Scanner and Analyzer using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini instance
func NewGemini(ctx context.Context, apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// ExtractText transcribes the text of a receipt image
func (g *Gemini) ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	pngData, err := prepareImage(imageData, contentType)
	if err != nil {
		return "", err
	}

	// genai.ImageData expects just the format suffix (e.g., "png"), not the full MIME type
	text, err := g.generate(ctx, genai.ImageData("png", pngData), genai.Text(transcribePrompt))
	if err != nil {
		return "", err
	}
	text = stripCodeFence(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// Analyze asks the model for structured fields from OCR text
func (g *Gemini) Analyze(ctx context.Context, text string) (*extract.Fields, error) {
	resp, err := g.generate(ctx, genai.Text(analyzePrompt+text))
	if err != nil {
		return nil, err
	}
	fields, err := ParseFieldsJSON(resp)
	if err != nil {
		return nil, fmt.Errorf("parsing receipt fields: %w", err)
	}
	return fields, nil
}

func (g *Gemini) generate(ctx context.Context, parts ...genai.Part) (string, error) {
	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}
	return strings.TrimSpace(responseText.String()), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
