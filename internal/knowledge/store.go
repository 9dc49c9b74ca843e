// Package knowledge wraps an embedding-backed nearest-neighbor index.
//
// The store is a single process-wide resource with a
// single-writer-then-many-readers lifecycle: startup ingestion populates it
// before the server accepts sessions, after which sessions only read. The
// underlying chromem collection is safe for concurrent use.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	chromem "github.com/philippgille/chromem-go"
)

// Store manages knowledge chunks with vector similarity search.
// Embeddings are generated by the EmbeddingFunc bound to the collection.
type Store struct {
	collection *chromem.Collection
	logger     *slog.Logger
}

// NewStore opens (or creates) the named collection on db with the given
// embedding function. A failure here is a fatal startup condition for the
// caller; the store is opened exactly once per process.
func NewStore(db *chromem.DB, name string, embed chromem.EmbeddingFunc, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	collection, err := db.GetOrCreateCollection(name, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("opening collection %q: %w", name, err)
	}

	return &Store{collection: collection, logger: logger}, nil
}

// Upsert inserts or overwrites chunks by ID, embedding each chunk's text.
// Idempotent for identical (id, text) pairs.
func (s *Store) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		if chunk.ID == "" {
			return fmt.Errorf("chunk %d has an empty ID", i)
		}
		docs[i] = chromem.Document{
			ID:       chunk.ID,
			Content:  chunk.Text,
			Metadata: chunk.Metadata,
		}
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("upserting %d chunks: %w", len(docs), err)
	}

	s.logger.Debug("upserted chunks", "count", len(docs))
	return nil
}

// Query embeds text and returns the k nearest chunks, most similar first.
// Fewer than k results are returned when the store holds fewer chunks; an
// empty store yields an empty, non-nil slice so callers always have a
// present (possibly empty) context to work with.
func (s *Store) Query(ctx context.Context, text string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	// chromem rejects nResults greater than the collection size.
	count := s.collection.Count()
	if count == 0 {
		return []Result{}, nil
	}
	if k > count {
		k = count
	}

	hits, err := s.collection.Query(ctx, text, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	results := make([]Result, len(hits))
	for i, hit := range hits {
		results[i] = Result{
			Chunk: Chunk{
				ID:       hit.ID,
				Text:     hit.Content,
				Metadata: hit.Metadata,
			},
			Similarity: hit.Similarity,
		}
	}

	return results, nil
}

// Count returns the number of chunks currently stored.
func (s *Store) Count() int {
	return s.collection.Count()
}
