package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const defaultModel = "gpt-4o-mini"

// OpenAI talks to an OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	system string
}

// OpenAIOption configures the client.
type OpenAIOption func(*config)

type config struct {
	model   string
	baseURL string
	system  string
}

// WithModel sets the completion model.
func WithModel(model string) OpenAIOption {
	return func(c *config) { c.model = model }
}

// WithBaseURL points the client at a compatible endpoint, such as a local
// model server.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(c *config) { c.baseURL = baseURL }
}

// WithSystemPrompt overrides the system role content.
func WithSystemPrompt(system string) OpenAIOption {
	return func(c *config) { c.system = system }
}

// NewOpenAI creates an OpenAI-backed LLM.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	cfg := config{
		model:  defaultModel,
		system: "You are LibriPal, a helpful library assistant.",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		clientConfig.BaseURL = cfg.baseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.model,
		system: cfg.system,
	}
}

// Complete implements LLM.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
