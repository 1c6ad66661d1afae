package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kestrelchat/kestrel/internal/hub"
)

// State is a session's position in the authentication state machine.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Conn is the duplex transport a session talks over. The production
// implementation wraps a websocket connection; tests use an in-memory
// pipe. Close must be safe to call more than once.
type Conn interface {
	// ReadFrame blocks until the next inbound frame, a transport error,
	// or ctx is done.
	ReadFrame(ctx context.Context) ([]byte, error)
	// WriteFrame sends one outbound frame.
	WriteFrame(ctx context.Context, payload []byte) error
	// Close tears down the transport. The reason is for logging only;
	// nothing beyond the closure itself is reported to the client.
	Close(reason string) error
}

// Verifier checks a presented token and returns the authenticated
// username. *token.Authority satisfies it.
type Verifier interface {
	Verify(tokenString string) (username string, ok bool)
}

// Session is the per-connection actor. It owns the connection's
// authentication state and its hub subscription exclusively; no other
// component reads or mutates either. All of its work happens on one
// goroutine inside Run.
type Session struct {
	id     string
	conn   Conn
	tokens Verifier
	hub    *hub.Hub[Message]
	logger *slog.Logger

	state           State
	username        string
	onAuthenticated func(username string)
}

// NewSession creates a session for one accepted connection. It does not
// subscribe or read anything until Run is called.
func NewSession(conn Conn, tokens Verifier, h *hub.Hub[Message]) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		conn:   conn,
		tokens: tokens,
		hub:    h,
		logger: slog.Default().With("session_id", id),
		state:  StateUnauthenticated,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Username returns the authenticated principal, or "" before
// authentication. Only meaningful from the session's own goroutine or
// after Run returns.
func (s *Session) Username() string { return s.username }

// State returns the current state. Same caveat as Username.
func (s *Session) State() State { return s.state }

// OnAuthenticated registers a callback invoked from the session goroutine
// when authentication succeeds. It must be set before Run.
func (s *Session) OnAuthenticated(fn func(username string)) {
	s.onAuthenticated = fn
}

// Run drives the session until the transport dies, a fatal protocol event
// occurs, or ctx is canceled. It subscribes to the hub before processing
// any frame, so the client receives the broadcast stream even before it
// authenticates; only publishing is gated on authentication.
//
// Each loop iteration handles exactly one event, racing the next inbound
// frame against the next hub delivery; select keeps the two sources from
// starving each other.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub := s.hub.Subscribe()
	defer sub.Close()
	defer s.terminate("session closed")

	frames := make(chan []byte)
	go s.readFrames(ctx, frames)

	s.logger.Debug("Session started")

	for s.state != StateTerminated {
		select {
		case raw, ok := <-frames:
			if !ok {
				// Transport closed or the read failed.
				s.logger.Debug("Transport closed")
				s.terminate("transport closed")
				continue
			}
			s.handleFrame(raw)

		case <-sub.Ready():
			if d, ok := sub.Receive(); ok {
				s.handleDelivery(ctx, d)
			}

		case <-ctx.Done():
			s.terminate("server shutting down")
		}
	}
}

// readFrames feeds raw transport frames into out until the transport fails
// or ctx is done, then closes out so the main loop observes the end.
func (s *Session) readFrames(ctx context.Context, out chan<- []byte) {
	defer close(out)
	for {
		raw, err := s.conn.ReadFrame(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Debug("Read loop ended", "error", err)
			}
			return
		}
		select {
		case out <- raw:
		case <-ctx.Done():
			return
		}
	}
}

// handleFrame applies one inbound frame to the state machine.
func (s *Session) handleFrame(raw []byte) {
	sig, err := DecodeSignal(raw)
	if err != nil {
		// Undecodable frames are non-fatal; skip and keep the
		// connection open.
		s.logger.Debug("Dropping undecodable frame", "error", err)
		return
	}

	switch sig := sig.(type) {
	case Authorize:
		if s.state != StateUnauthenticated {
			// Re-authentication mid-session is a protocol violation.
			s.logger.Warn("Authorization frame on an authenticated session")
			s.terminate("protocol violation")
			return
		}
		username, ok := s.tokens.Verify(sig.Token)
		if !ok {
			s.logger.Warn("Rejected invalid token")
			s.terminate("authentication failed")
			return
		}
		s.state = StateAuthenticated
		s.username = username
		s.logger = s.logger.With("username", username)
		s.logger.Info("Session authenticated")
		if s.onAuthenticated != nil {
			s.onAuthenticated(username)
		}

	case Post:
		if s.state != StateAuthenticated {
			s.logger.Warn("Message frame before authentication")
			s.terminate("protocol violation")
			return
		}
		// Fire and forget: delivery problems on the far side are never
		// surfaced back to the sender.
		s.hub.Publish(Message{Author: s.username, Body: sig.Text})
	}
}

// handleDelivery writes one hub delivery out to the client. Deliveries are
// written regardless of authentication state; lag notices are
// informational only.
func (s *Session) handleDelivery(ctx context.Context, d hub.Delivery[Message]) {
	if d.Lagged() {
		s.logger.Warn("Session lagging, broadcast messages dropped", "dropped", d.Dropped)
		return
	}

	payload, err := json.Marshal(d.Msg)
	if err != nil {
		s.logger.Error("Failed to encode outbound frame", "error", err)
		s.terminate("internal error")
		return
	}
	if err := s.conn.WriteFrame(ctx, payload); err != nil {
		// Writes are not retried.
		s.logger.Debug("Write failed, closing session", "error", err)
		s.terminate("write failed")
	}
}

// terminate moves the session to its terminal state and closes the
// transport. Safe to call repeatedly; the first reason wins.
func (s *Session) terminate(reason string) {
	if s.state != StateTerminated {
		s.state = StateTerminated
		s.logger.Info("Session terminated", "reason", reason)
	}
	_ = s.conn.Close(reason)
}
