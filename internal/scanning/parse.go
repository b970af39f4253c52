package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zombor/receipt-scanner/internal/extract"
	"github.com/zombor/receipt-scanner/internal/money"
)

// fieldsJSON is the document LLM analyzers are asked to return
type fieldsJSON struct {
	Merchant      string             `json:"merchant"`
	Total         *money.Amount      `json:"total"`
	Date          string             `json:"date"`
	Items         []extract.LineItem `json:"items"`
	Tax           *money.Amount      `json:"tax"`
	Subtotal      *money.Amount      `json:"subtotal"`
	ReceiptNumber json.RawMessage    `json:"receiptNumber"`
	Address       string             `json:"address"`
}

var analyzerDateLayouts = []string{
	time.DateOnly,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02-01-2006",
}

// stripCodeFence trims whitespace and a leading markdown code fence
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// ParseFieldsJSON parses an LLM response into receipt fields.
// Prose or code fences around the JSON object are ignored.
func ParseFieldsJSON(text string) (*extract.Fields, error) {
	text = stripCodeFence(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var data fieldsJSON
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	fields := &extract.Fields{
		Merchant:      strings.TrimSpace(data.Merchant),
		Date:          normalizeDate(data.Date),
		Items:         data.Items,
		ReceiptNumber: rawString(data.ReceiptNumber),
		Address:       strings.TrimSpace(data.Address),
	}
	if data.Total != nil {
		fields.Total = data.Total.NonNegative()
	}
	if data.Subtotal != nil {
		fields.Subtotal = data.Subtotal.NonNegative()
	}
	if data.Tax != nil {
		fields.Tax = data.Tax.NonNegative()
		fields.TaxFound = true
	}
	if fields.Items == nil {
		fields.Items = []extract.LineItem{}
	}

	return fields, nil
}

// normalizeDate converts a date to ISO 8601, returning "" when it cannot be read
func normalizeDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	for _, layout := range analyzerDateLayouts {
		if d, err := time.Parse(layout, value); err == nil {
			return d.Format(time.DateOnly)
		}
	}
	return ""
}

// rawString accepts receipt numbers returned as either JSON strings or numbers
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}
