// Package llm adapts a streaming chat-completion provider to a token
// sequence. The provider speaks the OpenAI wire protocol; the default
// endpoint is Groq's OpenAI-compatible API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/agnometry/founderchat/internal/rag"
)

// ErrGeneration indicates the completion provider failed before or during
// streaming. The session handler catches it at the turn boundary.
var ErrGeneration = errors.New("generation failed")

// Client issues streaming chat completions against a fixed model.
type Client struct {
	api    openai.Client
	model  string
	logger *slog.Logger
}

// New creates a completion client. baseURL selects the provider endpoint
// and is normalized to end with "/" so relative API paths resolve under it;
// empty means the default OpenAI endpoint.
func New(apiKey, baseURL, model string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Client{
		api:    openai.NewClient(opts...),
		model:  model,
		logger: logger,
	}
}

// StreamCompletion issues one streaming chat completion for the composed
// prompt (system + user, the whole conversation) and yields content tokens
// in provider emission order. Chunks without a content delta are skipped.
// The sequence is finite, consumed at most once, and ends early when the
// consumer stops; the first provider error is yielded last, wrapped in
// ErrGeneration.
func (c *Client) StreamCompletion(ctx context.Context, prompt rag.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream := c.api.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(prompt.System),
				openai.UserMessage(prompt.User),
			},
			Model: openai.ChatModel(c.model),
		})
		defer func() {
			if err := stream.Close(); err != nil {
				c.logger.Debug("closing completion stream", "error", err)
			}
		}()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			token := chunk.Choices[0].Delta.Content
			if token == "" {
				// Role-only or finish-reason chunks carry no content.
				continue
			}
			if !yield(token, nil) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("%w: %w", ErrGeneration, err))
		}
	}
}
