// Package embedding generates vector embeddings via the OpenAI embeddings
// API and bridges them to the knowledge store's embedding function type.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	chromem "github.com/philippgille/chromem-go"
)

// Client wraps the OpenAI embeddings endpoint with a fixed model.
type Client struct {
	api   openai.Client
	model string
}

// New creates an embedding client. baseURL may be empty for the default
// OpenAI endpoint; a non-empty value is normalized to end with "/" so
// relative API paths resolve under it.
func New(apiKey, baseURL, model string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Client{
		api:   openai.NewClient(opts...),
		model: model,
	}
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned for %d-byte input", len(text))
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Func adapts the client to the chromem embedding function type so the
// knowledge store can embed chunks and queries through it.
func (c *Client) Func() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return c.Embed(ctx, text)
	}
}
