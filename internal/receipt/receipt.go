package receipt

import (
	"time"

	"github.com/zombor/receipt-scanner/internal/confidence"
	"github.com/zombor/receipt-scanner/internal/extract"
	"github.com/zombor/receipt-scanner/internal/merchant"
	"github.com/zombor/receipt-scanner/internal/money"
)

// FallbackMerchant is the merchant name reported when no text could be read
const FallbackMerchant = "Unknown Merchant"

// Result is the structured reading of one receipt. Every field is always populated.
type Result struct {
	Merchant      string             `json:"merchant"`
	Total         money.Amount       `json:"total"`
	Date          string             `json:"date"`
	DateInferred  bool               `json:"dateInferred"` // Date is the processing date, not read from the receipt
	Items         []extract.LineItem `json:"items"`
	Category      merchant.Category  `json:"category"`
	Confidence    int                `json:"confidence"`
	Tax           money.Amount       `json:"tax"`
	Subtotal      money.Amount       `json:"subtotal"`
	ReceiptNumber string             `json:"receiptNumber"`
	Address       string             `json:"address"`
}

// Fallback returns the fixed low-confidence record used when OCR fails
func Fallback(today time.Time) *Result {
	return &Result{
		Merchant:     FallbackMerchant,
		Total:        money.Zero,
		Date:         today.Format(time.DateOnly),
		DateInferred: true,
		Items:        []extract.LineItem{},
		Category:     merchant.Other,
		Confidence:   confidence.Fallback,
		Tax:          money.Zero,
		Subtotal:     money.Zero,
	}
}

// Scan is a persisted scan of an uploaded receipt image
type Scan struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Text        string    `json:"text"`
	Fallback    bool      `json:"fallback"` // OCR failed and Result is the fallback record
	Result      *Result   `json:"result"`
	CreatedAt   time.Time `json:"created_at"`
}
