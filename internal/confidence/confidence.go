// Package confidence scores how much of a receipt was successfully read.
//
// The score is an additive heuristic, not a probability: a base value plus
// fixed increments for each field that was found, capped below certainty.
package confidence

import (
	"github.com/zombor/receipt-scanner/internal/extract"
)

const (
	Base = 50

	MerchantBonus      = 10
	TotalBonus         = 15
	DateBonus          = 10
	ItemsBonus         = 10
	ReceiptNumberBonus = 5

	// RecognitionBonus is added when the merchant classifier is more than
	// RecognitionThreshold percent sure.
	RecognitionBonus     = 10
	RecognitionThreshold = 80

	// Max is the highest score ever reported. OCR output is never certain.
	Max = 95

	// Fallback is the score of the record returned when OCR fails outright.
	Fallback = 10
)

// Score rates extracted fields together with the merchant classifier's confidence.
func Score(f extract.Fields, merchantConfidence int) int {
	score := Base
	if f.Merchant != "" {
		score += MerchantBonus
	}
	if f.Total.IsPositive() {
		score += TotalBonus
	}
	if f.Date != "" {
		score += DateBonus
	}
	if len(f.Items) > 0 {
		score += ItemsBonus
	}
	if f.ReceiptNumber != "" {
		score += ReceiptNumberBonus
	}
	if merchantConfidence > RecognitionThreshold {
		score += RecognitionBonus
	}
	return min(score, Max)
}
