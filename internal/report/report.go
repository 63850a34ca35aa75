package report

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/equity-cli/internal/model"
)

const maxSectionBullets = 3

var printer = message.NewPrinter(language.English)

// FormatBatch renders the whole run as one markdown document, one section
// per symbol in request order.
func FormatBatch(result *model.BatchResult) string {
	sections := []string{"# Research Brief"}
	for i := range result.Records {
		sections = append(sections, FormatRecord(&result.Records[i]))
	}
	if len(result.Failures) > 0 {
		sections = append(sections, formatFailures(result.Failures))
	}
	return strings.Join(sections, "\n\n") + "\n"
}

// FormatRecord renders a single entity record as a markdown brief section.
func FormatRecord(rec *model.EntityRecord) string {
	var lines []string
	lines = append(lines, "## "+rec.Symbol)
	if rec.Focus != "" {
		lines = append(lines, "_Focus: "+rec.Focus+"_")
	}

	lines = append(lines,
		"### Overview", overview(rec),
		"### Moat", moat(rec),
		"### Performance", performance(rec),
		"### Catalysts", articleBullets(rec.Articles, func(s float64) bool { return s >= 0 }),
		"### Risks", articleBullets(rec.Articles, func(s float64) bool { return s < 0 }),
		"### Valuation", valuation(rec),
	)

	if rec.Narrative != "" {
		lines = append(lines, "### Narrative", rec.Narrative)
	}
	if len(rec.Peers) > 0 {
		lines = append(lines, "### Peers", strings.Join(rec.Peers, ", "))
	}
	if len(rec.Citations) > 0 {
		lines = append(lines, "### Sources", sources(rec.Citations))
	}
	return strings.Join(lines, "\n\n")
}

func overview(rec *model.EntityRecord) string {
	if rec.Prices == nil || rec.Ratios == nil {
		return "Price data unavailable."
	}
	return printer.Sprintf(
		"Shares trade at $%.2f within a 52-week range of $%.2f-$%.2f. Headline sentiment over the past week averages %.2f.",
		rec.Ratios.LatestClose,
		rec.Prices.FiftyTwoWeekLow,
		rec.Prices.FiftyTwoWeekHigh,
		rec.Sentiment.Average,
	)
}

func moat(rec *model.EntityRecord) string {
	if rec.Excerpt == nil || rec.Excerpt.Section == "" {
		return "Management commentary unavailable."
	}
	return rec.Excerpt.Section
}

func performance(rec *model.EntityRecord) string {
	if rec.Prices == nil || rec.Ratios == nil {
		return "Indicator data unavailable."
	}
	currency := rec.Prices.Currency
	if currency == "" {
		currency = "USD"
	}
	return printer.Sprintf(
		"Latest close: %s %.2f. SMA20: %.2f, SMA50: %.2f, RSI14: %.2f.",
		currency, rec.Ratios.LatestClose, rec.Ratios.SMA20, rec.Ratios.SMA50, rec.Ratios.RSI14,
	)
}

func valuation(rec *model.EntityRecord) string {
	if rec.Prices == nil {
		return "Valuation context unavailable."
	}
	high := rec.Prices.FiftyTwoWeekHigh
	latest := rec.Prices.LatestClose
	var distanceToHigh float64
	if high != 0 {
		distanceToHigh = (high - latest) / high * 100
	}
	return printer.Sprintf(
		"Trading %.1f%% below the 52-week high of $%.2f, with downside to the 52-week low at $%.2f.",
		distanceToHigh, high, rec.Prices.FiftyTwoWeekLow,
	)
}

// articleBullets summarizes up to three articles whose sentiment matches
// the given predicate.
func articleBullets(articles []model.Article, match func(float64) bool) string {
	var bullets []string
	for _, a := range articles {
		if !match(a.Sentiment) {
			continue
		}
		summary := a.Summary
		if summary == "" {
			summary = a.Title
		}
		bullets = append(bullets, fmt.Sprintf("- %s (%s)", summary, a.Source))
		if len(bullets) == maxSectionBullets {
			break
		}
	}
	if len(bullets) == 0 {
		return "No notable items in the latest coverage."
	}
	return strings.Join(bullets, "\n")
}

func sources(citations []model.Citation) string {
	var lines []string
	for i, c := range citations {
		label := c.Title
		if c.Source != "" {
			label += " - " + c.Source
		}
		if c.PublishedAt != "" {
			label += " (" + c.PublishedAt + ")"
		}
		if c.URL != "" {
			lines = append(lines, fmt.Sprintf("%d. [%s](%s)", i+1, label, c.URL))
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, label))
	}
	return strings.Join(lines, "\n")
}

func formatFailures(failures []model.Failure) string {
	var b strings.Builder
	b.WriteString("## Failures\n")
	for _, f := range failures {
		fmt.Fprintf(&b, "\n- %s: %s/%s: %s", f.Symbol, f.Stage, f.Source, f.Message)
	}
	return b.String()
}
