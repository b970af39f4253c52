// Package merchant maps noisy merchant strings read from receipts to
// canonical names and spending categories.
package merchant

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Category is a spending category.
type Category string

const (
	Shopping       Category = "Shopping"
	FoodAndDining  Category = "Food & Dining"
	Transportation Category = "Transportation"
	Entertainment  Category = "Entertainment"
	Healthcare     Category = "Healthcare"
	Other          Category = "Other"
)

var categories = map[Category]bool{
	Shopping:       true,
	FoodAndDining:  true,
	Transportation: true,
	Entertainment:  true,
	Healthcare:     true,
	Other:          true,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return categories[c]
}

// Record is one known merchant.
type Record struct {
	Key            string   `yaml:"key"`
	CanonicalName  string   `yaml:"name"`
	Category       Category `yaml:"category"`
	BaseConfidence int      `yaml:"confidence"`
}

// Table is an immutable merchant lookup table. It is safe for concurrent use.
type Table struct {
	records []Record
	exact   map[string]Record
	compact []string // compactKey of records[i]
}

// NewTable validates records and builds a table. Record order is the
// priority order for partial matches.
func NewTable(records []Record) (*Table, error) {
	t := &Table{
		records: make([]Record, 0, len(records)),
		exact:   make(map[string]Record, len(records)),
		compact: make([]string, 0, len(records)),
	}

	for i, r := range records {
		r.Key = strings.ToUpper(strings.TrimSpace(r.Key))
		r.CanonicalName = strings.TrimSpace(r.CanonicalName)
		switch {
		case r.Key == "" || compactKey(r.Key) == "":
			return nil, fmt.Errorf("merchant %d: key is required", i)
		case r.CanonicalName == "":
			return nil, fmt.Errorf("merchant %q: name is required", r.Key)
		case !r.Category.Valid():
			return nil, fmt.Errorf("merchant %q: unknown category %q", r.Key, r.Category)
		case r.BaseConfidence < 0 || r.BaseConfidence > 100:
			return nil, fmt.Errorf("merchant %q: confidence %d out of range", r.Key, r.BaseConfidence)
		}
		if _, dup := t.exact[r.Key]; dup {
			return nil, fmt.Errorf("merchant %q: duplicate key", r.Key)
		}

		t.records = append(t.records, r)
		t.exact[r.Key] = r
		t.compact = append(t.compact, compactKey(r.Key))
	}

	return t, nil
}

// Len returns the number of merchants in the table.
func (t *Table) Len() int {
	return len(t.records)
}

// Records returns a copy of the table's records in priority order.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// tableFile is the on-disk YAML layout.
type tableFile struct {
	Merchants []Record `yaml:"merchants"`
}

// LoadTable reads a YAML merchant table:
//
//	merchants:
//	  - key: WALMART
//	    name: Walmart
//	    category: Shopping
//	    confidence: 95
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading merchant table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes a YAML merchant table.
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding merchant table: %w", err)
	}
	if len(f.Merchants) == 0 {
		return nil, errors.New("merchant table has no merchants")
	}
	return NewTable(f.Merchants)
}

// DefaultTable returns the built-in merchant table.
func DefaultTable() *Table {
	t, err := NewTable(defaultRecords)
	if err != nil {
		panic(err)
	}
	return t
}

var defaultRecords = []Record{
	{Key: "WALMART", CanonicalName: "Walmart", Category: Shopping, BaseConfidence: 95},
	{Key: "TARGET", CanonicalName: "Target", Category: Shopping, BaseConfidence: 92},
	{Key: "KROGER", CanonicalName: "Kroger", Category: FoodAndDining, BaseConfidence: 94},
	{Key: "SAFEWAY", CanonicalName: "Safeway", Category: FoodAndDining, BaseConfidence: 91},
	{Key: "SHELL", CanonicalName: "Shell", Category: Transportation, BaseConfidence: 89},
	{Key: "EXXON", CanonicalName: "Exxon", Category: Transportation, BaseConfidence: 87},
	{Key: "NETFLIX", CanonicalName: "Netflix", Category: Entertainment, BaseConfidence: 98},
	{Key: "AMAZON", CanonicalName: "Amazon", Category: Shopping, BaseConfidence: 96},
	{Key: "STARBUCKS", CanonicalName: "Starbucks", Category: FoodAndDining, BaseConfidence: 93},
	{Key: "MCDONALD", CanonicalName: "McDonald's", Category: FoodAndDining, BaseConfidence: 90},
	{Key: "COSTCO", CanonicalName: "Costco", Category: Shopping, BaseConfidence: 94},
	{Key: "HOME DEPOT", CanonicalName: "Home Depot", Category: Shopping, BaseConfidence: 93},
	{Key: "LOWES", CanonicalName: "Lowe's", Category: Shopping, BaseConfidence: 92},
	{Key: "BEST BUY", CanonicalName: "Best Buy", Category: Shopping, BaseConfidence: 91},
	{Key: "CVS", CanonicalName: "CVS", Category: Healthcare, BaseConfidence: 88},
	{Key: "WALGREENS", CanonicalName: "Walgreens", Category: Healthcare, BaseConfidence: 87},
	{Key: "CHIPOTLE", CanonicalName: "Chipotle", Category: FoodAndDining, BaseConfidence: 89},
	{Key: "SUBWAY", CanonicalName: "Subway", Category: FoodAndDining, BaseConfidence: 86},
	{Key: "DOMINOS", CanonicalName: "Domino's", Category: FoodAndDining, BaseConfidence: 85},
	{Key: "PIZZA HUT", CanonicalName: "Pizza Hut", Category: FoodAndDining, BaseConfidence: 84},
}

// compactKey uppercases s and drops everything but letters and digits, so
// "WAL-MART #4521" and "The Home Depot" compare as "WALMART4521" and "THEHOMEDEPOT".
func compactKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
