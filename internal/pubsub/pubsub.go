// Package pubsub carries side-channel events (presence, lifecycle) between
// components. It is deliberately separate from the chat hub: the hub fans
// chat messages out to connected clients, while this bus carries internal
// events nobody's connection depends on.
package pubsub

import "context"

// Message is the structure passed between components on the bus.
type Message struct {
	// Topic identifies the channel the message belongs to
	// (e.g. "chat.presence.connected").
	Topic string
	// Payload contains the raw event data, usually JSON.
	Payload []byte
	// Metadata can carry arbitrary key-value context.
	Metadata map[string]string
}

// Handler processes one received message. A non-nil error nacks the
// message.
type Handler func(ctx context.Context, msg Message) error

// Publisher sends messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber receives messages from the bus.
type Subscriber interface {
	// Subscribe starts listening on topic, processing each message with
	// handler on a background goroutine. It returns once the
	// subscription is active.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
