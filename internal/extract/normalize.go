package extract

import (
	"regexp"
	"strings"
)

var (
	// OCR services sometimes hand back the two-character sequence `\n` instead of a line break.
	reEscapedBreak = regexp.MustCompile(`\\r\\n|\\n|\\r`)
	reLineBreak    = regexp.MustCompile(`\r\n|\r|\n`)
	reMultiSpace   = regexp.MustCompile(`\s{2,}`)
)

// Document is normalized OCR text: the ordered non-empty lines and
// the same lines joined back with newlines.
type Document struct {
	Lines []string
	Text  string
}

// Empty reports whether normalization left nothing to extract from.
func (d Document) Empty() bool {
	return len(d.Lines) == 0
}

// Normalize splits raw OCR text into trimmed, non-empty lines with
// whitespace runs collapsed. Line order is preserved.
func Normalize(raw string) Document {
	text := reEscapedBreak.ReplaceAllString(raw, "\n")

	lines := make([]string, 0)
	for _, line := range reLineBreak.Split(text, -1) {
		line = reMultiSpace.ReplaceAllString(strings.TrimSpace(line), " ")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}

	return Document{
		Lines: lines,
		Text:  strings.Join(lines, "\n"),
	}
}
