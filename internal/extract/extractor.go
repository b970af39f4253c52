package extract

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-scanner/internal/money"
)

// itemCeiling bounds item prices relative to the total so the total line
// itself is never captured as an item.
var itemCeiling = decimal.NewFromFloat(1.5)

// Extract reads every field it can find from a normalized document.
// Missing fields are left at their zero values. Subtotal is the sum of the
// accepted item prices. The tax fallback (total minus subtotal) is left to the caller.
func Extract(doc Document) Fields {
	if doc.Empty() {
		return Fields{Items: []LineItem{}}
	}

	f := Fields{
		Merchant:      merchantLine(doc.Lines),
		Total:         total(doc.Text),
		Date:          date(doc.Text),
		ReceiptNumber: receiptNumber(doc.Text),
		Address:       address(doc.Lines),
	}
	f.Tax, f.TaxFound = tax(doc.Text)
	f.Items = items(doc.Lines)
	Reconcile(&f)
	return f
}

// Reconcile drops items that fail the price sanity check and recomputes the
// subtotal from what remains. It is applied to every Fields value before
// it leaves this package, and may be reapplied to fields from other sources.
func Reconcile(f *Fields) {
	ceiling := f.Total.Decimal.Mul(itemCeiling)
	kept := make([]LineItem, 0, len(f.Items))
	for _, item := range f.Items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" || !item.Price.IsPositive() || !item.Price.Decimal.LessThan(ceiling) {
			continue
		}
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		kept = append(kept, item)
	}
	f.Items = kept

	subtotal := money.Zero
	for _, item := range kept {
		subtotal = subtotal.Add(item.Price)
	}
	f.Subtotal = subtotal
}

// merchantLine returns the first non-boilerplate line near the top of the receipt.
func merchantLine(lines []string) string {
	for i := 0; i < len(lines) && i < merchantScanLines; i++ {
		if isBoilerplate(lines[i]) {
			continue
		}
		if utf8.RuneCountInString(lines[i]) > 2 {
			return lines[i]
		}
	}
	return ""
}

func isBoilerplate(line string) bool {
	upper := strings.ToUpper(line)
	for _, word := range merchantDenylist {
		if strings.Contains(upper, word) {
			return true
		}
	}
	return false
}

// total walks the total ladder and falls back to the largest amount on the receipt.
func total(text string) money.Amount {
	if raw, _, ok := totalLadder.first(text); ok {
		if a, err := money.Parse(raw); err == nil {
			return a
		}
	}

	amounts := allAmounts(text)
	if len(amounts) == 0 {
		return money.Zero
	}
	sort.Slice(amounts, func(i, j int) bool {
		return amounts[i].GreaterThan(amounts[j])
	})
	return amounts[0]
}

func allAmounts(text string) []money.Amount {
	matches := reAmount.FindAllString(text, -1)
	amounts := make([]money.Amount, 0, len(matches))
	for _, m := range matches {
		if a, err := money.Parse(m); err == nil {
			amounts = append(amounts, a)
		}
	}
	return amounts
}

func tax(text string) (money.Amount, bool) {
	raw, _, ok := taxLadder.first(text)
	if !ok {
		return money.Zero, false
	}
	a, err := money.Parse(raw)
	if err != nil {
		return money.Zero, false
	}
	return a, true
}

// date returns the first date found, converted to ISO-8601 when one of the
// rule's layouts accepts it and verbatim otherwise. Empty means no date was found.
func date(text string) string {
	for _, r := range dateLadder {
		m := r.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		for _, layout := range r.layouts {
			if t, err := time.Parse(layout, m[1]); err == nil {
				return t.Format(time.DateOnly)
			}
		}
		return m[1]
	}
	return ""
}

func receiptNumber(text string) string {
	value, _, _ := receiptNumberLadder.first(text)
	return value
}

// address returns the first street-address-shaped line near the top.
func address(lines []string) string {
	for i := 0; i < len(lines) && i < addressScanLines; i++ {
		if reAmount.MatchString(lines[i]) {
			continue
		}
		if reAddress.MatchString(lines[i]) {
			return lines[i]
		}
	}
	return ""
}

// items collects candidate item lines. The trailing amount on each line is
// the price and the rest of the line is the name. Price sanity is applied by Reconcile.
func items(lines []string) []LineItem {
	found := make([]LineItem, 0)
	for _, line := range lines {
		if !reAmount.MatchString(line) || reSummaryLine.MatchString(line) || reHeaderLine.MatchString(line) {
			continue
		}

		locs := reItemPrice.FindAllStringSubmatchIndex(line, -1)
		last := locs[len(locs)-1]
		price, err := money.Parse(line[last[2]:last[3]])
		if err != nil {
			continue
		}

		name := line[:last[0]] + " " + line[last[1]:]
		name = strings.Trim(reMultiSpace.ReplaceAllString(name, " "), " \t.:-*@$")
		found = append(found, LineItem{Name: name, Price: price, Quantity: 1})
	}
	return found
}
