// Package llm provides clients for the code-generating language models.
// Ollama (local) is the default provider; Google Gemini is available when
// an API key is configured.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pipewright/internal/config"

	"go.uber.org/zap"
)

// ErrEmptyCompletion is returned when the model produces no text.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// Client is the interface all LLM providers implement.
type Client interface {
	// Complete sends a prompt and returns the completion.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteWithSystem sends a prompt with a system message.
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Model returns the current model name.
	Model() string

	// SetModel changes the model used for completions.
	SetModel(model string)
}

// NewClient constructs the client for the configured provider.
func NewClient(cfg config.LLMConfig, timeout time.Duration, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaClient(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		}, logger), nil
	case "gemini":
		return NewGeminiClient(GeminiConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}
