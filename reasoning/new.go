package reasoning

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/linesmerrill/courtroom-api/config"
)

// New builds the backend selected by the LLM config
func New(ctx context.Context, cfg config.LLMConfig, logger *zap.SugaredLogger) (Backend, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(cfg.APIKey,
			WithBaseURL(cfg.BaseURL),
			WithModel(cfg.Model),
			WithTimeout(cfg.Timeout),
			WithTemperature(cfg.Temperature),
			WithLogger(logger),
		)
	case "gemini":
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Timeout:     cfg.Timeout,
			Temperature: cfg.Temperature,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
