package service

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"

	"github.com/karte-health/karte/pkg/adapter"
)

const imagePrompt = "What skin condition does this image suggest? Give top 3 guesses."

// ImageDiagnosis analyzes an uploaded medical image
type ImageDiagnosis struct {
	gemini adapter.Gemini
}

func NewImageDiagnosis(gemini adapter.Gemini) *ImageDiagnosis {
	return &ImageDiagnosis{gemini: gemini}
}

func (s *ImageDiagnosis) Analyze(ctx context.Context, data []byte, mimeType string) (string, error) {
	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
				{Text: imagePrompt},
			},
		},
	}

	resp, err := s.gemini.GenerateContent(ctx, contents, nil)
	if err != nil {
		return "", goerr.Wrap(err, "image diagnosis request failed", goerr.V("mime_type", mimeType))
	}

	text, err := responseText(resp)
	if err != nil {
		return "", goerr.Wrap(err, "no classification returned")
	}
	return text, nil
}
