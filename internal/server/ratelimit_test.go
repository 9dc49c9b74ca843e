package server

import (
	"net/http/httptest"
	"testing"
)

func TestRateLimiter_BurstExhaustion(t *testing.T) {
	// Near-zero refill so the burst is effectively the whole allowance.
	rl := newRateLimiter(0.001, 3)

	for i := range 3 {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d denied within burst", i)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request allowed after burst exhausted")
	}

	// A different IP has its own bucket.
	if !rl.allow("10.0.0.2") {
		t.Error("fresh IP denied")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		want       string
	}{
		{"host and port", "192.168.1.5:54321", "192.168.1.5"},
		{"ipv6 with port", "[::1]:8080", "::1"},
		{"no port", "192.168.1.5", "192.168.1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			r.RemoteAddr = tt.remoteAddr
			if got := clientIP(r); got != tt.want {
				t.Errorf("clientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
			}
		})
	}
}
