// Package testutil provides shared test helpers.
package testutil

import (
	"context"
	"strings"

	chromem "github.com/philippgille/chromem-go"
)

// VocabEmbedding returns a deterministic embedding function for tests.
// Dimension i counts occurrences of vocab[i] in the lowercased text; a
// trailing bias dimension is always set so no vector is ever zero-length.
// Texts sharing vocabulary words rank closer under cosine similarity,
// which makes retrieval ordering in tests predictable without any network
// or model dependency.
func VocabEmbedding(vocab ...string) chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		lower := strings.ToLower(text)
		vec := make([]float32, len(vocab)+1)
		for i, word := range vocab {
			vec[i] = float32(strings.Count(lower, strings.ToLower(word)))
		}
		vec[len(vocab)] = 0.1 // bias
		return vec, nil
	}
}

// FailingEmbedding returns an embedding function that always fails with
// err, for exercising store and ingestion error paths.
func FailingEmbedding(err error) chromem.EmbeddingFunc {
	return func(context.Context, string) ([]float32, error) {
		return nil, err
	}
}
