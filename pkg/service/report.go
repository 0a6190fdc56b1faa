package service

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"text/template"

	"github.com/m-mizutani/goerr/v2"

	"github.com/karte-health/karte/pkg/adapter"
	"github.com/karte-health/karte/pkg/model"
)

//go:embed prompt/report.md
var reportPromptRaw string

var reportPromptTmpl = template.Must(template.New("report").Parse(reportPromptRaw))

// Report generates a narrative health report from scored symptom data
type Report struct {
	gemini adapter.Gemini
}

func NewReport(gemini adapter.Gemini) *Report {
	return &Report{gemini: gemini}
}

func (s *Report) Monthly(ctx context.Context, criticality []model.DailyCriticality) (string, error) {
	dataJSON, err := json.MarshalIndent(criticality, "", "  ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal criticality data")
	}

	var buf bytes.Buffer
	if err := reportPromptTmpl.Execute(&buf, map[string]any{"DataJSON": string(dataJSON)}); err != nil {
		return "", goerr.Wrap(err, "failed to execute report prompt template")
	}

	text, err := generateText(ctx, s.gemini, buf.String(), nil)
	if err != nil {
		return "", goerr.Wrap(err, "report request failed")
	}

	return text, nil
}
