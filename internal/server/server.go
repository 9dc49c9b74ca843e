// Package server exposes the chat backend over HTTP: health probes plus
// the /ws websocket endpoint where each connection becomes an independent
// conversation session.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultIdleTimeout  = 300 * time.Second
	defaultStallTimeout = 120 * time.Second
	defaultRateBurst    = 30
)

// Config contains the collaborators and tunables for the server.
type Config struct {
	Logger       *slog.Logger
	Prompts      PromptBuilder // Required
	Generator    Generator     // Required
	Store        ChunkCounter  // Required: backs the readiness probe
	IdleTimeout  time.Duration // Max wait for client input before closing (0 = 300s)
	StallTimeout time.Duration // Max wait between provider tokens (0 = 120s)
	RateBurst    int           // Rate limiter burst size per IP (0 = default 30)
}

// Server is the HTTP server hosting the websocket chat endpoint.
type Server struct {
	mux *http.ServeMux
}

// New creates a server with all routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.Prompts == nil {
		return nil, errors.New("prompt builder is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("knowledge store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	stall := cfg.StallTimeout
	if stall <= 0 {
		stall = defaultStallTimeout
	}

	wh := &wsHandler{
		logger:       logger,
		prompts:      cfg.Prompts,
		generator:    cfg.Generator,
		idleTimeout:  idle,
		stallTimeout: stall,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from any page hosting the widget.
			CheckOrigin: func(*http.Request) bool { return true },
			Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
				writeError(w, status, "upgrade_failed", reason.Error(), logger)
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", wh.serve)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = defaultRateBurst
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.HandleFunc("GET /ready", readiness(cfg.Store, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// wsHandler upgrades HTTP requests and hands each connection to a session.
type wsHandler struct {
	logger       *slog.Logger
	prompts      PromptBuilder
	generator    Generator
	idleTimeout  time.Duration
	stallTimeout time.Duration
	upgrader     websocket.Upgrader
}

func (h *wsHandler) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("websocket upgrade failed", "error", err, "ip", r.RemoteAddr)
		return
	}

	sess := newSession(conn, h.prompts, h.generator, h.idleTimeout, h.stallTimeout, h.logger)
	sess.run(r.Context())
}
