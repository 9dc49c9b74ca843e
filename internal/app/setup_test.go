package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/agnometry/founderchat/internal/config"
	"github.com/agnometry/founderchat/internal/log"
)

func TestSetup_InMemory(t *testing.T) {
	// A nonexistent FAQ path keeps setup offline: nothing is embedded, so
	// the embedding client never makes a network call.
	cfg := &config.Config{
		FAQPath:         filepath.Join(t.TempDir(), "missing.txt"),
		ModelName:       config.DefaultModelName,
		EmbedderModel:   config.DefaultEmbedderModel,
		ProviderBaseURL: config.DefaultProviderURL,
		TopK:            2,
	}

	a, err := Setup(context.Background(), cfg, log.NewNop())
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	if a.Knowledge == nil {
		t.Error("Knowledge store not initialized")
	}
	if a.Composer == nil {
		t.Error("Composer not initialized")
	}
	if a.LLM == nil {
		t.Error("LLM client not initialized")
	}
	if a.Knowledge.Count() != 0 {
		t.Errorf("Count() = %d, want 0 with no FAQ file", a.Knowledge.Count())
	}
}
