// Package rag builds the persona prompt for a user query by retrieving
// relevant knowledge chunks and rendering them into a fixed template.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agnometry/founderchat/internal/knowledge"
)

// ErrRetrieval indicates the knowledge store could not be queried. The
// session handler catches it at the turn boundary and reports a generic
// error to the client.
var ErrRetrieval = errors.New("retrieval failed")

// personaTemplate is the fixed system prompt. The %s verb receives the
// retrieved context block, which may be empty.
const personaTemplate = `You are Rahul Jha, the Founder and Architect of Agnometry.
You are speaking directly to a potential enterprise client.
Use the following context to answer their question using your specific knowledge.

CRITICAL INSTRUCTIONS:
1. Be EXTREMELY CONCISE. Max 2-3 sentences.
2. No fluff, no pleasantries, no marketing jargon.
3. Tone: High-bandwidth, low-latency, sovereign intelligence.
4. Focus on engineering density and ROI.

CONTEXT:
%s`

// Prompt is a composed two-message conversation, built per query and
// discarded once the completion request is issued.
type Prompt struct {
	System string
	User   string
}

// Searcher is the slice of the knowledge store the composer needs.
type Searcher interface {
	Query(ctx context.Context, text string, k int) ([]knowledge.Result, error)
}

// Composer retrieves context and renders the persona prompt.
// Deterministic given the store contents and the query text.
type Composer struct {
	store  Searcher
	topK   int
	logger *slog.Logger
}

// NewComposer creates a Composer retrieving topK chunks per query.
func NewComposer(store Searcher, topK int, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{store: store, topK: topK, logger: logger}
}

// BuildPrompt queries the store for the chunks most relevant to userQuery
// and renders the persona template around them. Chunk texts are joined in
// rank order with a blank line; zero results yield an empty context block,
// never an error.
func (c *Composer) BuildPrompt(ctx context.Context, userQuery string) (Prompt, error) {
	results, err := c.store.Query(ctx, userQuery, c.topK)
	if err != nil {
		return Prompt{}, fmt.Errorf("%w: searching knowledge store: %w", ErrRetrieval, err)
	}

	texts := make([]string, len(results))
	for i, result := range results {
		texts[i] = result.Chunk.Text
	}
	contextText := strings.Join(texts, "\n\n")

	c.logger.Debug("composed prompt", "query_length", len(userQuery), "context_chunks", len(results))

	return Prompt{
		System: fmt.Sprintf(personaTemplate, contextText),
		User:   userQuery,
	}, nil
}
