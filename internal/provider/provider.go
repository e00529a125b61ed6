package provider

import (
	"context"
	"errors"

	"github.com/contentforge/contentforge/config"
	openai_provider "github.com/contentforge/contentforge/internal/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// ErrUnavailable is returned when a provider call fails for any reason a
// caller cannot distinguish (timeout, auth, rate limit, non-2xx).
var ErrUnavailable = errors.New("llm provider unavailable")

// Provider is the synthesis boundary: ask a language model to transform text
// into the requested shape. Implementations are swappable without affecting
// stage logic.
type Provider interface {
	Synthesize(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// NewProvider creates an LLM client based on the provided configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch Client(cfg.Provider) {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("OPENAI_API_KEY not set")
		}
		return openai_provider.NewClient(cfg.APIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
