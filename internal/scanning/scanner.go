package scanning

import (
	"context"
	"errors"

	"github.com/zombor/receipt-scanner/internal/extract"
)

// ErrNoText is returned when a provider answers but finds no text in the image.
var ErrNoText = errors.New("no text extracted from image")

// Scanner is an upstream OCR service that turns a receipt image into raw text.
type Scanner interface {
	// ExtractText returns the text found in a receipt image or PDF
	ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error)
	// Close closes the scanner and releases resources
	Close() error
}

// Analyzer reads structured receipt fields out of raw OCR text, typically with an LLM.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*extract.Fields, error)
}

// transcribePrompt is the shared prompt used by vision LLM providers to perform OCR
const transcribePrompt = `You are an OCR engine reading a photographed receipt or invoice.

Transcribe every line of text in the image exactly as printed, top to bottom:
- Keep one receipt line per output line, preserving the order of lines
- Keep item names and their prices on the same line
- Keep numbers, currency symbols and punctuation exactly as printed
- Do not summarize, translate, correct or reformat anything
- Do not add commentary and do not use markdown code blocks

If the image contains no readable text, return an empty response.`
