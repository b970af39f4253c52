package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
)

// DefaultOCRSpaceURL is the public OCR.space parse endpoint
const DefaultOCRSpaceURL = "https://api.ocr.space/parse/image"

// OCRSpace implements the Scanner interface using the OCR.space HTTP API
type OCRSpace struct {
	endpoint string
	apiKey   string
	client   *http.Client
	attempts uint
	delay    time.Duration
}

// NewOCRSpace creates a new OCR.space Scanner instance
func NewOCRSpace(endpoint, apiKey string) (*OCRSpace, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ocr.space api key is required")
	}
	if endpoint == "" {
		endpoint = DefaultOCRSpaceURL
	}
	return &OCRSpace{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{},
		attempts: 3,
		delay:    250 * time.Millisecond,
	}, nil
}

// ocrSpaceResponse is the subset of the OCR.space response we read
type ocrSpaceResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// retryableError marks failures worth another attempt (transport errors, 5xx, 429)
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// ExtractText sends the image to OCR.space and returns the parsed text
func (o *OCRSpace) ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	mimeType, payload, err := ocrSpacePayload(imageData, contentType)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("apikey", o.apiKey)
	form.Set("language", "eng")
	form.Set("isOverlayRequired", "false")
	form.Set("scale", "true")
	form.Set("base64Image", fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(payload)))
	if mimeType == "application/pdf" {
		form.Set("filetype", "PDF")
	}

	var text string
	err = retry.Do(
		func() error {
			var err error
			text, err = o.post(ctx, form)
			return err
		},
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			var re *retryableError
			return errors.As(err, &re)
		}),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Retrying OCR.space request", "attempt", n+1, "error", err)
		}),
		retry.Attempts(o.attempts),
		retry.Delay(o.delay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}
	return text, nil
}

// ocrSpaceTypes are the image types OCR.space reads directly
var ocrSpaceTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
}

// ocrSpacePayload picks what to upload: PDF, PNG and the types OCR.space reads are sent as-is,
// everything else (HEIC/HEIF, unlabelled uploads) is converted to PNG first.
func ocrSpacePayload(data []byte, contentType string) (string, []byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	switch detectFormat(data, mimeType) {
	case formatPDF:
		return "application/pdf", data, nil
	case formatPNG:
		return "image/png", data, nil
	case formatOther:
		if bytes.HasPrefix(data, []byte("\xff\xd8\xff")) {
			return "image/jpeg", data, nil
		}
		if ocrSpaceTypes[mimeType] {
			return mimeType, data, nil
		}
	}

	pngData, err := prepareImage(data, mimeType)
	if err != nil {
		return "", nil, err
	}
	return "image/png", pngData, nil
}

func (o *OCRSpace) post(ctx context.Context, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("calling ocr.space API: %w", err)
		}
		return "", &retryableError{err: fmt.Errorf("calling ocr.space API: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		err := fmt.Errorf("ocr.space API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", &retryableError{err: err}
		}
		return "", err
	}

	var parsed ocrSpaceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if parsed.IsErroredOnProcessing {
		return "", fmt.Errorf("ocr processing failed: %s", errorMessage(parsed.ErrorMessage))
	}

	var text strings.Builder
	for _, result := range parsed.ParsedResults {
		text.WriteString(result.ParsedText)
		text.WriteString("\n")
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", ErrNoText
	}
	return text.String(), nil
}

// errorMessage flattens ErrorMessage, which OCR.space sends as either a string or a list
func errorMessage(raw json.RawMessage) string {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return "unknown error"
}

// Close is a no-op for the HTTP client
func (o *OCRSpace) Close() error {
	return nil
}
