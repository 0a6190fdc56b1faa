package service

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"

	"github.com/karte-health/karte/pkg/adapter"
	"github.com/karte-health/karte/pkg/model"
)

//go:embed prompt/criticality.md
var criticalityPromptRaw string

var criticalityPromptTmpl = template.Must(template.New("criticality").Parse(criticalityPromptRaw))

// Criticality scores day buckets of symptoms via the model, one report per
// day present in the input
type Criticality struct {
	gemini adapter.Gemini
}

func NewCriticality(gemini adapter.Gemini) *Criticality {
	return &Criticality{gemini: gemini}
}

func (s *Criticality) Score(ctx context.Context, buckets []model.DailyBucket) ([]model.DailyCriticality, error) {
	dataJSON, err := json.MarshalIndent(buckets, "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal day buckets")
	}

	var buf bytes.Buffer
	if err := criticalityPromptTmpl.Execute(&buf, map[string]any{"DataJSON": string(dataJSON)}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute criticality prompt template")
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	text, err := generateText(ctx, s.gemini, buf.String(), config)
	if err != nil {
		return nil, goerr.Wrap(err, "criticality request failed")
	}

	return ParseCriticality(text)
}

// criticalityResponse is the wire shape the prompt asks the model for
type criticalityResponse struct {
	DailyCriticality []model.DailyCriticality `json:"dailyCriticality"`
}

// ParseCriticality decodes a criticality response. The model occasionally
// wraps the JSON in Markdown code fences, so they are stripped first. A
// malformed body yields ErrUpstreamParse carrying the raw text so callers can
// still display something.
func ParseCriticality(text string) ([]model.DailyCriticality, error) {
	body := stripCodeFence(text)

	var parsed criticalityResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, goerr.Wrap(model.ErrUpstreamParse, "failed to parse criticality response",
			goerr.V("raw", text))
	}

	return parsed.DailyCriticality, nil
}
