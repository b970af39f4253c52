package extract

import (
	"regexp"
	"time"
)

// amountPattern matches a currency-shaped number such as 5.38 or 1,234.56.
const amountPattern = `(\d+(?:,\d{3})*\.\d{2})`

// rule is one rung of an extraction ladder. The first capture group holds the value.
type rule struct {
	name    string
	pattern *regexp.Regexp
}

// ladder is an ordered list of rules; the first rule that matches wins.
type ladder []rule

// first returns the captured value and rule name of the highest-priority match.
func (l ladder) first(text string) (value, name string, ok bool) {
	for _, r := range l {
		if m := r.pattern.FindStringSubmatch(text); m != nil {
			return m[1], r.name, true
		}
	}
	return "", "", false
}

// Labelled rungs read the first amount after the label on the same line,
// so "TOTAL 2 ITEMS 5.38" yields 5.38.
var totalLadder = ladder{
	{name: "total", pattern: regexp.MustCompile(`(?i)\b(?:grand\s+)?total\b[^\n]*?` + amountPattern)},
	{name: "amount due", pattern: regexp.MustCompile(`(?i)\bamount\s+due\b[^\n]*?` + amountPattern)},
	{name: "balance", pattern: regexp.MustCompile(`(?i)\bbalance\b[^\n]*?` + amountPattern)},
	{name: "trailing total", pattern: regexp.MustCompile(`(?i)` + amountPattern + `[ \t]*total\b`)},
}

// A percentage between the label and the amount ("TAX 8.25% 0.40") is skipped.
var taxLadder = ladder{
	{name: "tax", pattern: regexp.MustCompile(`(?i)\b(?:tax|vat)\b[^\d\n]*?(?:\d+(?:\.\d+)?\s*%[^\d\n]*?)?` + amountPattern)},
}

var receiptNumberLadder = ladder{
	{name: "receipt", pattern: regexp.MustCompile(`(?i)receipt.*?(\d+)`)},
	{name: "hash", pattern: regexp.MustCompile(`#.*?(\d+)`)},
	{name: "trans", pattern: regexp.MustCompile(`(?i)trans.*?(\d+)`)},
}

// dateRule pairs a date pattern with the layouts used to convert a match to ISO-8601.
type dateRule struct {
	rule
	layouts []string
}

var dateLadder = []dateRule{
	{rule: rule{name: "iso", pattern: regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)}, layouts: []string{time.DateOnly}},
	{rule: rule{name: "month/day/year", pattern: regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{2,4})\b`)}, layouts: []string{"1/2/2006", "1/2/06"}},
	{rule: rule{name: "day-month-year", pattern: regexp.MustCompile(`\b(\d{1,2}-\d{1,2}-\d{2,4})\b`)}, layouts: []string{"2-1-2006", "2-1-06"}},
}

var (
	reAmount = regexp.MustCompile(amountPattern)
	// price at the end of an item line, optionally with a currency sign
	reItemPrice = regexp.MustCompile(`\$?` + amountPattern)

	reSummaryLine = regexp.MustCompile(`(?i)TOTAL|AMOUNT|BALANCE|TAX|VAT|SUBTOTAL|\b(?:CHANGE|CASH|TENDER)\b`)
	reHeaderLine  = regexp.MustCompile(`(?i)RECEIPT|THANK|WELCOME|PURCHASE|SALE|DATE|TIME`)

	reAddress = regexp.MustCompile(`(?i)^\d+\s+[A-Z0-9 .'#-]*?\b(?:ST|STREET|AVE|AVENUE|RD|ROAD|BLVD|BOULEVARD|DR|DRIVE|LN|LANE|WAY|HWY|HIGHWAY|PKWY|PARKWAY|CT|COURT|PL|PLACE)\b`)
)

// merchantDenylist holds boilerplate words that never name a merchant.
var merchantDenylist = []string{"RECEIPT", "THANK", "WELCOME", "PURCHASE", "SALE"}

const (
	merchantScanLines = 5
	addressScanLines  = 6
)
