package server

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agnometry/founderchat/internal/llm"
	"github.com/agnometry/founderchat/internal/rag"
)

// ErrTransport indicates the client connection failed. Unlike retrieval and
// generation errors it is never reported to the client; it tears the
// session down.
var ErrTransport = errors.New("transport failed")

// ErrGenerationStall marks a provider stream that stopped yielding tokens.
// It wraps llm.ErrGeneration so turn-boundary classification treats a
// stall like any other generation failure.
var ErrGenerationStall = fmt.Errorf("%w: token stream stalled", llm.ErrGeneration)

// Outbound frame literals. The end-of-turn marker is a reserved sentinel
// that cannot collide with model output, letting the client know
// deterministically when the assistant has finished speaking.
const (
	endOfTurnMarker  = "<END_OF_TURN>"
	genericTurnError = "Error processing request."
)

const (
	writeTimeout    = 10 * time.Second
	maxQueryBytes   = 64 << 10
	responsePreview = 100
)

// PromptBuilder composes the model prompt for a user query.
type PromptBuilder interface {
	BuildPrompt(ctx context.Context, userQuery string) (rag.Prompt, error)
}

// Generator streams completion tokens for a composed prompt. The sequence
// ends on exhaustion; a non-nil error is yielded last and terminates it.
type Generator interface {
	StreamCompletion(ctx context.Context, prompt rag.Prompt) iter.Seq2[string, error]
}

// sessionState tracks where a session is in its lifecycle. Retrieving,
// streaming and turn completion are per-turn states; closed is terminal.
type sessionState int

const (
	stateAwaitingInput sessionState = iota
	stateRetrieving
	stateStreaming
	stateTurnComplete
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateAwaitingInput:
		return "awaiting_input"
	case stateRetrieving:
		return "retrieving"
	case stateStreaming:
		return "streaming"
	case stateTurnComplete:
		return "turn_complete"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// session owns one client connection. It holds no state across turns
// beyond the connection itself: every query is answered from the shared
// knowledge store alone.
type session struct {
	conn         *websocket.Conn
	prompts      PromptBuilder
	generator    Generator
	idleTimeout  time.Duration
	stallTimeout time.Duration
	logger       *slog.Logger
	state        sessionState
}

func newSession(conn *websocket.Conn, prompts PromptBuilder, generator Generator, idleTimeout, stallTimeout time.Duration, logger *slog.Logger) *session {
	return &session{
		conn:         conn,
		prompts:      prompts,
		generator:    generator,
		idleTimeout:  idleTimeout,
		stallTimeout: stallTimeout,
		logger:       logger.With("session_id", uuid.NewString()),
	}
}

// run drives the per-turn loop until the session closes: read a query,
// answer it, frame the turn, repeat. It always returns with the connection
// closed.
func (s *session) run(ctx context.Context) {
	s.logger.Info("client connected")
	defer func() {
		s.state = stateClosed
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("closing connection", "error", err)
		}
		s.logger.Info("connection closed")
	}()

	s.conn.SetReadLimit(maxQueryBytes)

	for {
		s.state = stateAwaitingInput
		query, err := s.readQuery()
		if err != nil {
			s.logReadEnd(err)
			return
		}

		// Blank input is discarded silently: no echo, no error, no
		// turn framing.
		if strings.TrimSpace(query) == "" {
			continue
		}

		s.logger.Info("received query", "length", len(query))
		if !s.runTurn(ctx, query) {
			return
		}
	}
}

// readQuery blocks for the next inbound text frame, bounded by the idle
// timeout. Non-text frames are reported as empty queries and discarded by
// the caller.
func (s *session) readQuery() (string, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout)); err != nil {
		return "", fmt.Errorf("setting read deadline: %w", err)
	}

	messageType, data, err := s.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	if messageType != websocket.TextMessage {
		return "", nil
	}
	return string(data), nil
}

// logReadEnd classifies why the inbound side ended. Idle timeout and
// client disconnect are normal termination paths, not errors.
func (s *session) logReadEnd(err error) {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		s.logger.Info("idle timeout, closing session", "idle", s.idleTimeout)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		s.logger.Info("client disconnected")
	default:
		s.logger.Warn("read failed, closing session", "error", err)
	}
}

// runTurn answers one query and frames the turn. A retrieval or generation
// failure is contained here: the client gets one generic error frame and
// the session stays open. Only transport failures end the session; the
// return value reports whether it survives.
func (s *session) runTurn(ctx context.Context, query string) bool {
	err := s.answer(ctx, query)
	if err != nil {
		if errors.Is(err, ErrTransport) {
			s.logger.Warn("turn aborted", "state", s.state, "error", err)
			return false
		}

		s.logger.Error("turn failed", "state", s.state, "error", err)
		if writeErr := s.writeFrame(genericTurnError); writeErr != nil {
			s.logger.Warn("sending turn error", "error", writeErr)
			return false
		}
	}

	s.state = stateTurnComplete
	if err := s.writeFrame(endOfTurnMarker); err != nil {
		s.logger.Warn("sending end-of-turn marker", "error", err)
		return false
	}
	return true
}

// answer retrieves context, streams the completion, and forwards tokens to
// the client in emission order with no buffering beyond the transport's.
// The provider pull runs in its own goroutine so the forward loop can
// bound the wait for each token: a stalled stream becomes a generation
// error instead of hanging the session forever.
func (s *session) answer(ctx context.Context, query string) error {
	s.state = stateRetrieving
	prompt, err := s.prompts.BuildPrompt(ctx, query)
	if err != nil {
		return err
	}

	s.state = stateStreaming
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tokens := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(tokens)
		for token, err := range s.generator.StreamCompletion(turnCtx, prompt) {
			if err != nil {
				errc <- err
				return
			}
			select {
			case tokens <- token:
			case <-turnCtx.Done():
				return
			}
		}
	}()

	var full strings.Builder
	stall := time.NewTimer(s.stallTimeout)
	defer stall.Stop()

	for {
		select {
		case token, ok := <-tokens:
			if !ok {
				// Drained: either clean completion or a provider error
				// parked in errc before the channel closed.
				select {
				case err := <-errc:
					return err
				default:
				}
				s.logger.Info("turn complete", "response_length", full.Len(),
					"preview", preview(full.String()))
				return nil
			}

			if err := s.writeFrame(token); err != nil {
				// Client gone mid-stream: abort immediately, no
				// further sends. cancel() releases the pull goroutine.
				return fmt.Errorf("%w: forwarding token: %w", ErrTransport, err)
			}
			full.WriteString(token)

			if !stall.Stop() {
				<-stall.C
			}
			stall.Reset(s.stallTimeout)

		case <-stall.C:
			return fmt.Errorf("%w: no token from provider for %s", ErrGenerationStall, s.stallTimeout)

		case <-turnCtx.Done():
			return fmt.Errorf("%w: %w", ErrTransport, turnCtx.Err())
		}
	}
}

// writeFrame sends one outbound text frame with a bounded write deadline.
func (s *session) writeFrame(text string) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// preview truncates a response for logging.
func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= responsePreview {
		return s
	}
	return string(runes[:responsePreview]) + "..."
}
