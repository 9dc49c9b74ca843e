// Package ingest loads plain-text knowledge files into the knowledge store.
//
// Ingestion is best effort: a missing file is logged and skipped so the
// server always starts, at worst with an empty store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/agnometry/founderchat/internal/knowledge"
)

// ErrIngestion indicates a non-fatal ingestion failure. Callers log it and
// continue; it never aborts startup.
var ErrIngestion = errors.New("ingestion failed")

// ChunkStore is the slice of the knowledge store the loader needs.
type ChunkStore interface {
	Upsert(ctx context.Context, chunks []knowledge.Chunk) error
}

// Loader splits text files into paragraph chunks and feeds them to a store.
type Loader struct {
	store  ChunkStore
	logger *slog.Logger
}

// New creates a Loader writing to store.
func New(store ChunkStore, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, logger: logger}
}

// IngestFile reads the file at path, splits it into paragraph chunks and
// upserts them with positional IDs (id_0, id_1, ...) and a "faq" source
// tag. Re-running on the same file produces identical IDs, so prior
// entries are overwritten rather than duplicated.
//
// A missing file is logged and returns nil. Other failures return an error
// wrapping ErrIngestion for the caller to log; nothing here is fatal.
func (l *Loader) IngestFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Error("knowledge file not found, starting without it", "path", path)
			return nil
		}
		return fmt.Errorf("%w: reading %s: %w", ErrIngestion, path, err)
	}

	paragraphs := SplitParagraphs(string(data))
	if len(paragraphs) == 0 {
		l.logger.Warn("knowledge file contains no paragraphs", "path", path)
		return nil
	}

	chunks := make([]knowledge.Chunk, len(paragraphs))
	for i, text := range paragraphs {
		chunks[i] = knowledge.Chunk{
			ID:       fmt.Sprintf("id_%d", i),
			Text:     text,
			Metadata: map[string]string{"source": "faq"},
		}
	}

	if err := l.store.Upsert(ctx, chunks); err != nil {
		return fmt.Errorf("%w: storing %d chunks from %s: %w", ErrIngestion, len(chunks), path, err)
	}

	l.logger.Info("ingested knowledge chunks", "path", path, "count", len(chunks))
	return nil
}

// SplitParagraphs splits text on blank-line boundaries, trims surrounding
// whitespace and drops empty paragraphs. Long paragraphs are kept whole;
// the chunking policy is structural, not semantic.
func SplitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	paragraphs := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}
