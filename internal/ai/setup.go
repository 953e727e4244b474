package ai

import (
	"context"
	"strings"

	"github.com/suPer8Hu/gemini-chat/internal/config"
)

// RegistryFromConfig registers every supported endpoint with credentials from cfg.
func RegistryFromConfig(cfg config.Config) *Registry {
	reg := NewRegistry()

	reg.Register("gemini", func(ctx context.Context, model string) (Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.GeminiModel
		}
		p, err := NewGeminiProvider(ctx, cfg.GeminiAPIKey, m)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	reg.Register("ollama", func(ctx context.Context, model string) (Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})

	reg.Register("openai", func(ctx context.Context, model string) (Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenAIModel
		}
		p, err := NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, m)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	return reg
}
