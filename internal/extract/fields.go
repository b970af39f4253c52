// Package extract turns normalized receipt text into structured fields
// using ordered pattern ladders.
package extract

import (
	"github.com/zombor/receipt-scanner/internal/money"
)

// LineItem is one purchased item read from a receipt line.
type LineItem struct {
	Name     string       `json:"name"`
	Price    money.Amount `json:"price"`
	Quantity int          `json:"quantity"`
}

// Fields holds best-effort values read from a receipt. Zero values mean
// the field was not found.
type Fields struct {
	Merchant      string
	Total         money.Amount
	Tax           money.Amount
	TaxFound      bool
	Subtotal      money.Amount
	Date          string
	Items         []LineItem
	ReceiptNumber string
	Address       string
}
