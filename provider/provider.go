package provider

import (
	"context"
	"errors"
	"os"
	"time"

	openai_provider "github.com/scout-sh/scout/provider/openai"
)

// Client represents different embedding providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
)

// Provider is the interface the research pipeline needs from an embedding
// backend. The deduplicator degrades to lexical similarity when no provider
// is configured, so construction failures are not fatal to a run.
type Provider interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates an embedding client based on the provided configuration.
func NewProvider(client Client, apiKey, model string, timeout time.Duration) (Provider, error) {
	switch client {
	case OpenAI:
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("OPENAI_API_KEY not set")
		}
		return openai_provider.NewClient(apiKey, model, timeout), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	case Gemini:
		return nil, errors.New("gemini client not implemented yet")
	default:
		return nil, errors.New("unsupported embedding provider")
	}
}
