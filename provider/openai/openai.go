package openai_provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// client wraps the OpenAI SDK behind the embedding interface the pipeline
// consumes.
type client struct {
	api   *openai.Client
	model openai.EmbeddingModel
}

// NewClient creates a new OpenAI embedding client.
func NewClient(apiKey, model string, timeout time.Duration) *client {
	cfg := openai.DefaultConfig(apiKey)
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &client{
		api:   openai.NewClientWithConfig(cfg),
		model: embeddingModel(model),
	}
}

// CreateEmbedding generates one vector per input text, preserving order.
func (c *client) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(texts), len(resp.Data))
	}

	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

func embeddingModel(name string) openai.EmbeddingModel {
	switch name {
	case "text-embedding-3-small":
		return openai.SmallEmbedding3
	case "text-embedding-3-large":
		return openai.LargeEmbedding3
	default:
		return openai.AdaEmbeddingV2
	}
}
