package service

import (
	"bytes"
	"context"
	_ "embed"
	"text/template"

	"github.com/m-mizutani/goerr/v2"

	"github.com/karte-health/karte/pkg/adapter"
)

//go:embed prompt/diagnosis.md
var diagnosisPromptRaw string

var diagnosisPromptTmpl = template.Must(
	template.New("diagnosis").
		Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
		Parse(diagnosisPromptRaw),
)

// Diagnosis produces a free-text diagnosis from a symptom description,
// grounded on the user's known conditions and prior session summaries.
type Diagnosis struct {
	llm adapter.LLM
}

func NewDiagnosis(llm adapter.LLM) *Diagnosis {
	return &Diagnosis{llm: llm}
}

func (s *Diagnosis) Analyze(ctx context.Context, symptom string, conditions, priorSummaries []string) (string, error) {
	var buf bytes.Buffer
	if err := diagnosisPromptTmpl.Execute(&buf, map[string]any{
		"Symptom":    symptom,
		"Conditions": conditions,
		"Summaries":  priorSummaries,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute diagnosis prompt template")
	}

	result, err := s.llm.ChatCompletion(ctx, buf.String())
	if err != nil {
		return "", goerr.Wrap(err, "diagnosis request failed")
	}

	return result, nil
}
