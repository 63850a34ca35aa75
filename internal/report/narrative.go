package report

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/sells-group/equity-cli/internal/model"
)

const narrativeSystemPrompt = "You are an equity research assistant that combines structured data sources " +
	"to produce concise, citation-backed insights."

// DefaultNarrativeModel is used when no model is configured.
const DefaultNarrativeModel = "claude-haiku-4-5-20251001"

// Narrator produces a short prose summary of an entity record. Optional;
// the brief renders without one.
type Narrator interface {
	Narrative(ctx context.Context, rec *model.EntityRecord) (string, error)
}

// AnthropicNarrator generates the summary with the Anthropic API.
type AnthropicNarrator struct {
	client sdk.Client
	model  string
}

// NewAnthropicNarrator creates a Narrator backed by the SDK.
func NewAnthropicNarrator(apiKey, modelID string) *AnthropicNarrator {
	if modelID == "" {
		modelID = DefaultNarrativeModel
	}
	return &AnthropicNarrator{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  modelID,
	}
}

func (n *AnthropicNarrator) Narrative(ctx context.Context, rec *model.EntityRecord) (string, error) {
	prompt := narrativePrompt(rec)

	msg, err := n.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(n.model),
		MaxTokens: 512,
		System: []sdk.TextBlockParam{
			{Text: narrativeSystemPrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", eris.Wrapf(err, "report: narrative for %s", rec.Symbol)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// narrativePrompt packs the structured record into a compact prompt.
func narrativePrompt(rec *model.EntityRecord) string {
	var b strings.Builder
	b.WriteString("Write a two-paragraph investment summary for " + rec.Symbol + ".\n\n")
	b.WriteString("Data:\n")
	b.WriteString(performance(rec) + "\n")
	b.WriteString(valuation(rec) + "\n")
	if rec.Sentiment.ArticleCount > 0 {
		b.WriteString(printer.Sprintf("Average headline sentiment: %.2f over %d articles.\n",
			rec.Sentiment.Average, rec.Sentiment.ArticleCount))
	}
	if len(rec.Peers) > 0 {
		b.WriteString("Peers: " + strings.Join(rec.Peers, ", ") + ".\n")
	}
	if rec.Excerpt != nil && rec.Excerpt.Section != "" {
		section := rec.Excerpt.Section
		if len(section) > 2000 {
			section = section[:2000]
		}
		b.WriteString("\nManagement commentary excerpt:\n" + section + "\n")
	}
	if rec.Focus != "" {
		b.WriteString("\nEmphasize: " + rec.Focus + ".\n")
	}
	return b.String()
}
