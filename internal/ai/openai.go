package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// OpenAIProvider talks to any OpenAI-compatible endpoint (OpenRouter, vLLM, ollama /v1).
type OpenAIProvider struct {
	llm *openai.LLM
}

func NewOpenAIProvider(baseURL, apiKey, model string) (*OpenAIProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("openai: model is required")
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return &OpenAIProvider{llm: llm}, nil
}

func (p *OpenAIProvider) Chat(ctx context.Context, history []Turn, message string) (string, error) {
	resp, err := p.llm.GenerateContent(ctx, toMessageContent(history, message))
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty response")
	}
	return resp.Choices[0].Content, nil
}

func toMessageContent(history []Turn, message string) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(history)+1)
	for _, t := range history {
		typ := schema.ChatMessageTypeAI
		if t.Role == RoleUser {
			typ = schema.ChatMessageTypeHuman
		}
		out = append(out, llms.TextParts(typ, t.Text))
	}
	return append(out, llms.TextParts(schema.ChatMessageTypeHuman, message))
}
