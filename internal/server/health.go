package server

import (
	"log/slog"
	"net/http"
)

// ChunkCounter reports how many knowledge chunks are available for
// retrieval. Implemented by the knowledge store.
type ChunkCounter interface {
	Count() int
}

// health is a liveness probe. Returns 200 OK with {"status":"ok"}.
func health(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// readiness reports whether the server can answer queries. The chunk count
// is informational: an empty store is still ready, answers just carry no
// grounding context.
func readiness(store ChunkCounter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ready",
			"chunks": store.Count(),
		}, logger)
	}
}
