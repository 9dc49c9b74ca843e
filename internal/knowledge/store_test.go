package knowledge

import (
	"context"
	"errors"
	"testing"

	chromem "github.com/philippgille/chromem-go"

	"github.com/agnometry/founderchat/internal/log"
	"github.com/agnometry/founderchat/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	embed := testutil.VocabEmbedding("pricing", "support", "custom", "deploy")
	store, err := NewStore(chromem.NewDB(), "test_knowledge", embed, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	return store
}

func faqChunks() []Chunk {
	return []Chunk{
		{ID: "id_0", Text: "Q: pricing?\nA: custom.", Metadata: map[string]string{"source": "faq"}},
		{ID: "id_1", Text: "Q: support?\nA: 24/7.", Metadata: map[string]string{"source": "faq"}},
	}
}

func TestStore_UpsertAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, faqChunks()); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	results, err := store.Query(ctx, "pricing", 2)
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Query() returned %d results, want 2", len(results))
	}
	if results[0].Chunk.ID != "id_0" {
		t.Errorf("top result = %q, want id_0", results[0].Chunk.ID)
	}
	if results[0].Chunk.Text != "Q: pricing?\nA: custom." {
		t.Errorf("top result text = %q", results[0].Chunk.Text)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Errorf("results not ranked by similarity: %v < %v",
			results[0].Similarity, results[1].Similarity)
	}
	if results[0].Chunk.Metadata["source"] != "faq" {
		t.Errorf("metadata lost: %v", results[0].Chunk.Metadata)
	}
}

func TestStore_UpsertOverwritesByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, faqChunks()); err != nil {
		t.Fatalf("first Upsert() error: %v", err)
	}
	if err := store.Upsert(ctx, faqChunks()); err != nil {
		t.Fatalf("second Upsert() error: %v", err)
	}

	if got := store.Count(); got != 2 {
		t.Errorf("Count() after re-upsert = %d, want 2", got)
	}
}

func TestStore_QueryEmptyStore(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Query(context.Background(), "anything", 2)
	if err != nil {
		t.Fatalf("Query() on empty store error: %v", err)
	}
	if results == nil {
		t.Fatal("Query() on empty store returned nil, want empty slice")
	}
	if len(results) != 0 {
		t.Errorf("Query() on empty store returned %d results", len(results))
	}
}

func TestStore_QueryClampsK(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, faqChunks()[:1]); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	results, err := store.Query(ctx, "pricing", 5)
	if err != nil {
		t.Fatalf("Query() with k > count error: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Query() returned %d results, want 1", len(results))
	}
}

func TestStore_QueryRejectsNonPositiveK(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Query(context.Background(), "pricing", 0); err == nil {
		t.Error("Query(k=0) expected error, got nil")
	}
}

func TestStore_UpsertRejectsEmptyID(t *testing.T) {
	store := newTestStore(t)

	err := store.Upsert(context.Background(), []Chunk{{ID: "", Text: "orphan"}})
	if err == nil {
		t.Error("Upsert(empty ID) expected error, got nil")
	}
}

func TestStore_UpsertEmptyBatch(t *testing.T) {
	store := newTestStore(t)

	if err := store.Upsert(context.Background(), nil); err != nil {
		t.Errorf("Upsert(nil) error: %v", err)
	}
}

func TestStore_UpsertEmbeddingFailure(t *testing.T) {
	embedErr := errors.New("embedder down")
	store, err := NewStore(chromem.NewDB(), "test_knowledge", testutil.FailingEmbedding(embedErr), log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	if err := store.Upsert(context.Background(), faqChunks()); err == nil {
		t.Error("Upsert() with failing embedder expected error, got nil")
	}
}
