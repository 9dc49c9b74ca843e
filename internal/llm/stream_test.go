package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agnometry/founderchat/internal/log"
	"github.com/agnometry/founderchat/internal/rag"
)

// chunkJSON renders one SSE chunk with the given content delta.
// An empty content string produces a delta without a content field,
// mimicking role-only and finish-reason chunks.
func chunkJSON(content string) string {
	delta := "{}"
	if content != "" {
		delta = fmt.Sprintf(`{"content":%q}`, content)
	}
	return fmt.Sprintf(
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"llama-3.1-8b-instant","choices":[{"index":0,"delta":%s,"finish_reason":null}]}`,
		delta)
}

// fakeCompletionServer streams the given chunk payloads followed by [DONE].
func fakeCompletionServer(t *testing.T, chunks ...string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

func collect(t *testing.T, client *Client, prompt rag.Prompt) ([]string, error) {
	t.Helper()

	var tokens []string
	for token, err := range client.StreamCompletion(context.Background(), prompt) {
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

func TestStreamCompletion_TokensInOrder(t *testing.T) {
	ts := fakeCompletionServer(t, chunkJSON("Hel"), chunkJSON("lo"), chunkJSON("."))
	defer ts.Close()

	client := New("test-key", ts.URL, "llama-3.1-8b-instant", log.NewNop())

	tokens, err := collect(t, client, rag.Prompt{System: "sys", User: "hi"})
	if err != nil {
		t.Fatalf("StreamCompletion() error: %v", err)
	}

	want := []string{"Hel", "lo", "."}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens %q, want %d", len(tokens), tokens, len(want))
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("tokens[%d] = %q, want %q", i, tokens[i], want[i])
		}
	}
}

func TestStreamCompletion_SkipsEmptyDeltas(t *testing.T) {
	// Role-only chunk first, then content, then an empty finish chunk.
	ts := fakeCompletionServer(t, chunkJSON(""), chunkJSON("answer"), chunkJSON(""))
	defer ts.Close()

	client := New("test-key", ts.URL, "llama-3.1-8b-instant", log.NewNop())

	tokens, err := collect(t, client, rag.Prompt{User: "hi"})
	if err != nil {
		t.Fatalf("StreamCompletion() error: %v", err)
	}
	if len(tokens) != 1 || tokens[0] != "answer" {
		t.Errorf("tokens = %q, want [answer]", tokens)
	}
}

func TestStreamCompletion_ProviderErrorWrapsErrGeneration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// 400 is not retried by the client, keeping this test fast.
		http.Error(w, `{"error":{"message":"model overloaded"}}`, http.StatusBadRequest)
	}))
	defer ts.Close()

	client := New("test-key", ts.URL, "llama-3.1-8b-instant", log.NewNop())

	tokens, err := collect(t, client, rag.Prompt{User: "hi"})
	if len(tokens) != 0 {
		t.Errorf("got tokens %q from a failing provider", tokens)
	}
	if !errors.Is(err, ErrGeneration) {
		t.Errorf("StreamCompletion() = %v, want ErrGeneration", err)
	}
}

func TestStreamCompletion_ConsumerCanStopEarly(t *testing.T) {
	ts := fakeCompletionServer(t, chunkJSON("a"), chunkJSON("b"), chunkJSON("c"))
	defer ts.Close()

	client := New("test-key", ts.URL, "llama-3.1-8b-instant", log.NewNop())

	var got []string
	for token, err := range client.StreamCompletion(context.Background(), rag.Prompt{User: "hi"}) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, token)
		break
	}

	if len(got) != 1 || got[0] != "a" {
		t.Errorf("tokens = %q, want [a]", got)
	}
}
