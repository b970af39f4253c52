package merchant

import (
	"log/slog"
	"strings"
)

// Match describes which rung of the classification ladder produced a result.
type Match int

const (
	MatchNone Match = iota
	MatchKeyword
	MatchPartial
	MatchExact
)

func (m Match) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchPartial:
		return "partial"
	case MatchKeyword:
		return "keyword"
	default:
		return "none"
	}
}

// Classification is the classifier's verdict for one merchant string.
type Classification struct {
	CanonicalName string
	Category      Category
	Confidence    int
	Match         Match
}

// keywordRule assigns a category to merchants whose name contains any keyword.
type keywordRule struct {
	category   Category
	confidence int
	keywords   []string
}

var keywordRules = []keywordRule{
	{category: Transportation, confidence: 75, keywords: []string{"GAS", "FUEL", "SHELL", "EXXON"}},
	{category: FoodAndDining, confidence: 80, keywords: []string{"FOOD", "RESTAURANT", "CAFE", "PIZZA"}},
	{category: Shopping, confidence: 70, keywords: []string{"STORE", "MARKET", "SHOP"}},
}

const (
	fallbackConfidence = 60

	// Inputs shorter than this are not treated as truncated merchant keys.
	minTruncatedLen = 3
)

// Classifier resolves merchant strings against a Table. It holds no mutable
// state and is safe for concurrent use.
type Classifier struct {
	table *Table
}

// NewClassifier creates a Classifier backed by table.
func NewClassifier(table *Table) *Classifier {
	return &Classifier{table: table}
}

// Classify walks exact match, partial match, keyword heuristics and finally
// the generic fallback. It always returns a result.
func (c *Classifier) Classify(raw string) Classification {
	name := strings.TrimSpace(raw)
	upper := strings.ToUpper(name)
	compact := compactKey(name)

	fallback := Classification{
		CanonicalName: name,
		Category:      Other,
		Confidence:    fallbackConfidence,
		Match:         MatchNone,
	}
	if compact == "" {
		return fallback
	}

	if r, ok := c.table.exact[upper]; ok {
		return fromRecord(r, MatchExact)
	}

	for i, key := range c.table.compact {
		if strings.Contains(compact, key) ||
			(len(compact) >= minTruncatedLen && strings.Contains(key, compact)) {
			return fromRecord(c.table.records[i], MatchPartial)
		}
	}

	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(upper, kw) {
				slog.Debug("Merchant categorized by keyword", "merchant", name, "keyword", kw, "category", rule.category)
				return Classification{
					CanonicalName: name,
					Category:      rule.category,
					Confidence:    rule.confidence,
					Match:         MatchKeyword,
				}
			}
		}
	}

	return fallback
}

func fromRecord(r Record, m Match) Classification {
	return Classification{
		CanonicalName: r.CanonicalName,
		Category:      r.Category,
		Confidence:    r.BaseConfidence,
		Match:         m,
	}
}
