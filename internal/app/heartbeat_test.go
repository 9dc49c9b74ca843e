package app

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/agnometry/founderchat/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// syncBuffer guards a bytes.Buffer for the heartbeat goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStartHeartbeat_LogsPeriodically(t *testing.T) {
	buf := &syncBuffer{}
	logger := log.NewWithWriter(buf, log.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartHeartbeat(ctx, 10*time.Millisecond, logger)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), "heartbeat") {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no heartbeat logged within deadline")
}

func TestStartHeartbeat_DisabledForZeroInterval(t *testing.T) {
	buf := &syncBuffer{}
	logger := log.NewWithWriter(buf, log.Config{})

	// Must not start a goroutine; TestMain's leak check enforces it.
	StartHeartbeat(context.Background(), 0, logger)

	time.Sleep(20 * time.Millisecond)
	if strings.Contains(buf.String(), "heartbeat") {
		t.Error("heartbeat logged despite zero interval")
	}
}
