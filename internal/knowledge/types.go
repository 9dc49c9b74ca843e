package knowledge

// Chunk is a unit of ingested text stored with a stable ID and metadata.
// Chunks are immutable once upserted; re-upserting the same ID replaces the
// stored entry.
type Chunk struct {
	ID       string            // Unique identifier within the store
	Text     string            // UTF-8 chunk content
	Metadata map[string]string // Optional metadata (e.g. source tag)
}

// Result is a single search hit with its cosine similarity score.
type Result struct {
	Chunk      Chunk
	Similarity float32 // Cosine similarity in [0, 1]
}
