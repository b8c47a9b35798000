// Package llm provides the language-model backends used by prompt and
// analysis tools: a deterministic echo used when no credential is configured,
// and a Gemini client.
package llm

import (
	"context"
	"log/slog"
)

// Client turns a prompt into reply text.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// New returns a Gemini client when apiKey is set and the echo mock otherwise.
// A Gemini construction failure also degrades to the mock.
func New(ctx context.Context, apiKey string, logger *slog.Logger, opts ...GeminiOption) Client {
	if logger == nil {
		logger = slog.Default()
	}
	if apiKey == "" {
		logger.Info("no LLM credential configured, using mock echo")
		return NewMock()
	}
	g, err := NewGemini(ctx, apiKey, opts...)
	if err != nil {
		logger.Warn("gemini client unavailable, using mock echo", "error", err)
		return NewMock()
	}
	return g
}
