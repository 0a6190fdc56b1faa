package service

import (
	"bytes"
	"context"
	_ "embed"
	"regexp"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"

	"github.com/karte-health/karte/pkg/adapter"
	"github.com/karte-health/karte/pkg/model"
)

//go:embed prompt/summary.md
var summaryPromptRaw string

var summaryPromptTmpl = template.Must(template.New("summary").Parse(summaryPromptRaw))

// fallbackTitle is used when the model response carries no Title line
const fallbackTitle = "Untitled Diagnosis"

var (
	titleRe   = regexp.MustCompile(`(?i)Title:\s*(.+)`)
	summaryRe = regexp.MustCompile(`(?is)Summary:\s*(.*)`)
)

// Summary derives a short title and bullet summary from a diagnosis text
type Summary struct {
	gemini adapter.Gemini
}

func NewSummary(gemini adapter.Gemini) *Summary {
	return &Summary{gemini: gemini}
}

func (s *Summary) Summarize(ctx context.Context, diagnosis string) (*model.TurnSummary, error) {
	var buf bytes.Buffer
	if err := summaryPromptTmpl.Execute(&buf, map[string]any{"Diagnosis": diagnosis}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute summary prompt template")
	}

	text, err := generateText(ctx, s.gemini, buf.String(), nil)
	if err != nil {
		return nil, goerr.Wrap(err, "summary request failed")
	}

	return ParseSummary(text), nil
}

// ParseSummary extracts the Title:/Summary: pair from a model response. The
// format is requested but not guaranteed; missing pieces fall back to the
// sentinel title and the raw text, never to an error.
func ParseSummary(text string) *model.TurnSummary {
	out := &model.TurnSummary{
		Title:   fallbackTitle,
		Summary: strings.TrimSpace(text),
	}

	if m := titleRe.FindStringSubmatch(text); m != nil {
		if title := strings.TrimSpace(m[1]); title != "" {
			out.Title = title
		}
	}
	if m := summaryRe.FindStringSubmatch(text); m != nil {
		summary := strings.TrimSpace(m[1])
		summary = strings.TrimSpace(strings.TrimSuffix(summary, "---"))
		if summary != "" {
			out.Summary = summary
		}
	}

	return out
}
