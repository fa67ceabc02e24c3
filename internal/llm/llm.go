// Package llm adapts hosted language models to a single Generate call.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 2 * time.Minute

// Providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Model generates a completion for a prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Func adapts a function to Model.
type Func func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Config selects and authenticates a provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// Factory returns a Model bound to a system instruction. All models from one
// factory share a client.
type Factory func(role, system string) Model

// NewFactory connects to the configured provider. Every model it returns is
// wrapped with Traced.
func NewFactory(ctx context.Context, cfg Config) (Factory, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is required", cfg.Provider)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	switch cfg.Provider {
	case ProviderGemini, "":
		g, err := NewGemini(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return func(role, system string) Model {
			return Traced(role, g.WithSystem(system), timeout)
		}, nil
	case ProviderOpenAI:
		o := NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL)
		return func(role, system string) Model {
			return Traced(role, o.WithSystem(system), timeout)
		}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
