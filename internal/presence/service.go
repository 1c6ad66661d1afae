// Package presence tracks which sessions are currently connected, fed by
// lifecycle events published on the message bus. It is purely
// observational: nothing in the relay path depends on it.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kestrelchat/kestrel/internal/pubsub"
)

const (
	// TopicConnected is published when a session starts.
	TopicConnected = "chat.presence.connected"
	// TopicAuthenticated is published when a session proves its identity.
	TopicAuthenticated = "chat.presence.authenticated"
	// TopicDisconnected is published when a session ends.
	TopicDisconnected = "chat.presence.disconnected"
)

// Event is the payload carried on the presence topics. Username is empty
// for sessions that never authenticated.
type Event struct {
	SessionID string    `json:"session_id"`
	Username  string    `json:"username,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publish emits a presence event on the given topic. Errors are logged and
// swallowed; presence is fire-and-forget and must never affect a session.
func Publish(ctx context.Context, pub pubsub.Publisher, topic string, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to encode presence event", "topic", topic, "error", err)
		return
	}
	if err := pub.Publish(ctx, pubsub.Message{Topic: topic, Payload: payload}); err != nil {
		slog.Error("Failed to publish presence event", "topic", topic, "error", err)
	}
}

// Service maintains the set of connected sessions. The three topics are
// consumed independently, so a session's events can arrive in any order;
// the handlers reconcile the out-of-order cases rather than assume
// connect-first.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]Event    // session id -> latest lifecycle event
	gone     map[string]struct{} // disconnects seen before their connect
	logger   *slog.Logger
}

// NewService creates an empty presence tracker.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]Event),
		gone:     make(map[string]struct{}),
		logger:   slog.Default().With("service", "presence"),
	}
}

// Start subscribes the service to the presence topics.
func (s *Service) Start(ctx context.Context, sub pubsub.Subscriber) error {
	for topic, handler := range map[string]pubsub.Handler{
		TopicConnected:     s.handleConnected,
		TopicAuthenticated: s.handleAuthenticated,
		TopicDisconnected:  s.handleDisconnected,
	} {
		if err := sub.Subscribe(ctx, topic, handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}
	return nil
}

// Count returns the number of connected sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Online returns the usernames of connected sessions that have
// authenticated. A user with several connections appears once per session.
func (s *Service) Online() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]string, 0, len(s.sessions))
	for _, ev := range s.sessions {
		if ev.Username != "" {
			users = append(users, ev.Username)
		}
	}
	return users
}

func (s *Service) handleConnected(ctx context.Context, msg pubsub.Message) error {
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return fmt.Errorf("malformed presence event: %w", err)
	}

	s.mu.Lock()
	if _, dead := s.gone[ev.SessionID]; dead {
		// The session's disconnect was already processed; this connect
		// arrived last and must not leave a permanent entry.
		delete(s.gone, ev.SessionID)
		s.mu.Unlock()
		return nil
	}
	// The authenticated event can also overtake this one; keep the
	// username it recorded.
	if existing, ok := s.sessions[ev.SessionID]; ok && existing.Username != "" {
		ev.Username = existing.Username
	}
	s.sessions[ev.SessionID] = ev
	count := len(s.sessions)
	s.mu.Unlock()

	s.logger.Info("Session connected", "session_id", ev.SessionID, "connected", count)
	return nil
}

func (s *Service) handleAuthenticated(ctx context.Context, msg pubsub.Message) error {
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return fmt.Errorf("malformed presence event: %w", err)
	}

	s.mu.Lock()
	if _, dead := s.gone[ev.SessionID]; dead {
		s.mu.Unlock()
		return nil
	}
	// Upsert: this event can overtake the connected event.
	if existing, ok := s.sessions[ev.SessionID]; ok {
		existing.Username = ev.Username
		s.sessions[ev.SessionID] = existing
	} else {
		s.sessions[ev.SessionID] = ev
	}
	s.mu.Unlock()

	s.logger.Info("Session authenticated", "session_id", ev.SessionID, "username", ev.Username)
	return nil
}

func (s *Service) handleDisconnected(ctx context.Context, msg pubsub.Message) error {
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return fmt.Errorf("malformed presence event: %w", err)
	}

	s.mu.Lock()
	if _, ok := s.sessions[ev.SessionID]; !ok {
		// Disconnect before connect: remember the session is over so
		// the stragglers are ignored when they arrive.
		s.gone[ev.SessionID] = struct{}{}
	}
	delete(s.sessions, ev.SessionID)
	count := len(s.sessions)
	s.mu.Unlock()

	s.logger.Info("Session disconnected",
		"session_id", ev.SessionID, "username", ev.Username, "connected", count)
	return nil
}
