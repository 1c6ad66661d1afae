// Package hub provides the shared fan-out point between chat sessions.
// Every published message is delivered to every live subscription; a slow
// subscriber loses its oldest buffered entries instead of slowing anyone
// else down.
package hub

import "sync"

// DefaultCapacity is the per-subscription delivery queue size.
const DefaultCapacity = 32

// Delivery is one item received from a subscription: either a broadcast
// message, or a notice that the subscriber lagged and Dropped entries were
// discarded to make room.
type Delivery[T any] struct {
	Msg     T
	Dropped uint64
}

// Lagged reports whether this delivery is a lag notice rather than a message.
func (d Delivery[T]) Lagged() bool { return d.Dropped > 0 }

// Hub maintains the set of live subscriptions and broadcasts messages to
// them. Publishing takes a read lock on the subscriber set and a short
// per-subscription lock for the buffer push, so one stuck consumer never
// blocks the publisher or its peers.
type Hub[T any] struct {
	mu       sync.RWMutex
	subs     map[*Subscription[T]]struct{}
	capacity int
}

// New creates a hub with the default per-subscription queue capacity.
func New[T any]() *Hub[T] {
	return NewWithCapacity[T](DefaultCapacity)
}

// NewWithCapacity creates a hub whose subscriptions buffer up to capacity
// undelivered messages each.
func NewWithCapacity[T any](capacity int) *Hub[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Hub[T]{
		subs:     make(map[*Subscription[T]]struct{}),
		capacity: capacity,
	}
}

// Subscribe registers a new bounded delivery queue and returns its handle.
// The caller owns the subscription and must Close it when done.
func (h *Hub[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{
		hub:   h,
		buf:   make([]T, h.capacity),
		ready: make(chan struct{}, 1),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Publish pushes msg into every current subscription's queue. A full queue
// drops its oldest entry and records the loss; Publish itself never blocks
// and never fails because of a slow consumer.
func (h *Hub[T]) Publish(msg T) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		s.push(msg)
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub[T]) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub[T]) remove(s *Subscription[T]) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// Subscription is one subscriber's ordered, size-bounded delivery queue.
// It is owned by exactly one consumer; the hub only ever pushes into it.
type Subscription[T any] struct {
	hub *Hub[T]

	mu      sync.Mutex
	buf     []T // ring buffer
	head    int
	length  int
	dropped uint64
	closed  bool

	// ready carries at most one pending wakeup; Receive re-arms it while
	// the queue is non-empty.
	ready chan struct{}
}

// Ready returns a channel that signals when Receive has something to
// return. It is intended for use in a select alongside other event
// sources.
func (s *Subscription[T]) Ready() <-chan struct{} { return s.ready }

// Receive pops the next delivery. A pending lag notice is reported before
// any buffered message and is reset once reported, so each overflow run is
// signaled exactly once. ok is false when nothing is queued.
func (s *Subscription[T]) Receive() (d Delivery[T], ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dropped > 0 {
		d = Delivery[T]{Dropped: s.dropped}
		s.dropped = 0
		if s.length > 0 {
			s.signal()
		}
		return d, true
	}
	if s.length == 0 {
		return d, false
	}

	d = Delivery[T]{Msg: s.buf[s.head]}
	var zero T
	s.buf[s.head] = zero
	s.head = (s.head + 1) % len(s.buf)
	s.length--
	if s.length > 0 {
		s.signal()
	}
	return d, true
}

// Close detaches the subscription from its hub; nothing is delivered to it
// afterwards. Close is idempotent and safe to call while the hub is
// publishing.
func (s *Subscription[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.hub.remove(s)
}

func (s *Subscription[T]) push(msg T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.length == len(s.buf) {
		// Drop the oldest entry to make room for the newest.
		var zero T
		s.buf[s.head] = zero
		s.head = (s.head + 1) % len(s.buf)
		s.length--
		s.dropped++
	}
	s.buf[(s.head+s.length)%len(s.buf)] = msg
	s.length++
	s.signal()
}

// signal arms the ready channel without ever blocking. Callers hold s.mu.
func (s *Subscription[T]) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}
