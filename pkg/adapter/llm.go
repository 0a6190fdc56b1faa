package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	openai "github.com/sashabaranov/go-openai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// LLM is the interface for OpenAI-compatible chat completion backends
type LLM interface {
	ChatCompletion(ctx context.Context, prompt string) (string, error)
}

// GroqClient calls the Groq OpenAI-compatible endpoint
type GroqClient struct {
	client *openai.Client
	model  string
}

type GroqOption func(*GroqClient)

func WithChatModel(model string) GroqOption {
	return func(c *GroqClient) {
		c.model = model
	}
}

// NewGroq creates a chat completion client against the Groq API
func NewGroq(apiKey string, opts ...GroqOption) *GroqClient {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = groqBaseURL

	c := &GroqClient{
		client: openai.NewClientWithConfig(config),
		model:  "llama3-70b-8192",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *GroqClient) ChatCompletion(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to create chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", goerr.New("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
