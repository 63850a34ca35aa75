package edgar

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// ErrSectionNotFound signals that every extraction pattern was exhausted
// against a document. Degraded, not fatal: filing metadata is still
// returned by callers.
var ErrSectionNotFound = eris.New("edgar: section not found")

// Pattern is one extraction heuristic with its own output bound. Patterns
// are tried in priority order; specificity buys a larger excerpt.
type Pattern struct {
	Name     string
	Re       *regexp.Regexp
	MaxChars int
}

// DefaultPatterns returns the ordered heuristics for locating management
// commentary in annual and quarterly reports. Filings vary widely in
// heading style, so the exact numbered item reference comes first and the
// generic heading text last.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:     "item7-mda",
			Re:       regexp.MustCompile(`(?i)item\s+7\s*[.:\-]?\s*management.{0,3}s\s+discussion\s+and\s+analysis`),
			MaxChars: 20000,
		},
		{
			Name:     "item2-mda",
			Re:       regexp.MustCompile(`(?i)item\s+2\s*[.:\-]?\s*management.{0,3}s\s+discussion\s+and\s+analysis`),
			MaxChars: 20000,
		},
		{
			Name:     "mda-heading",
			Re:       regexp.MustCompile(`(?i)management.{0,3}s\s+discussion\s+and\s+analysis`),
			MaxChars: 12000,
		},
		{
			Name:     "results-of-operations",
			Re:       regexp.MustCompile(`(?i)results\s+of\s+operations`),
			MaxChars: 4000,
		},
	}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// FlattenHTML strips markup from a filing document and collapses all
// whitespace runs to single spaces, producing the text the extraction
// patterns run against.
func FlattenHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", eris.Wrap(err, "edgar: parse document html")
	}
	doc.Find("script, style, noscript").Remove()

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " ")), nil
}

// ExtractSection tries each pattern in order against flattened document
// text and returns the capped substring starting at the first match.
// Returns ErrSectionNotFound only after all patterns are exhausted.
func ExtractSection(text string, patterns []Pattern) (string, error) {
	for _, p := range patterns {
		loc := p.Re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		section := text[loc[0]:]
		if len(section) > p.MaxChars {
			cut := p.MaxChars
			for cut > 0 && !utf8.RuneStart(section[cut]) {
				cut--
			}
			section = section[:cut]
		}
		return strings.TrimSpace(section), nil
	}
	return "", eris.Wrapf(ErrSectionNotFound, "%d patterns exhausted", len(patterns))
}
