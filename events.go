package authkit

import (
	"sync"
	"sync/atomic"
	"time"
)

// Topic identifies an authentication-state event stream.
type Topic uint8

const (
	// TopicAuthChanged fires with Value=true after a completed login and
	// Value=false after a logout or detected expiry.
	TopicAuthChanged Topic = iota
	// TopicAuthLogout fires once per logout, after local state is cleared.
	TopicAuthLogout
	// TopicPermissionsRefresh fires when consumers should refetch
	// permissions (Value=true forces the refetch).
	TopicPermissionsRefresh
	// TopicTwoFactorSetup fires when two-factor enrollment completes.
	TopicTwoFactorSetup

	topicCount
)

// String names the topic for logs.
func (t Topic) String() string {
	switch t {
	case TopicAuthChanged:
		return "auth-changed"
	case TopicAuthLogout:
		return "auth-logout"
	case TopicPermissionsRefresh:
		return "permissions-should-refresh"
	case TopicTwoFactorSetup:
		return "2fa-setup-complete"
	default:
		return "unknown"
	}
}

// Event is one authentication-state transition.
type Event struct {
	Topic Topic
	Value bool
	At    time.Time
}

// Bus is the process-wide publish/subscribe channel for authentication
// events. Publishing never blocks: a subscriber whose buffer is full loses
// the event and the bus counts the drop. Safe for concurrent use.
type Bus struct {
	buffer int

	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	closed  bool
	dropped atomic.Uint64
}

// newBus creates a Bus whose subscribers get channels of the given capacity.
func newBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 1
	}
	return &Bus{
		buffer: buffer,
		subs:   map[*Subscription]struct{}{},
	}
}

// Subscription is one subscriber's handle. Cancel must be called when the
// consumer goes away or the bus will keep delivering into its buffer.
type Subscription struct {
	bus    *Bus
	ch     chan Event
	topics map[Topic]struct{}
	once   sync.Once
}

// Events is the subscriber's receive channel. It is closed by Cancel and by
// bus shutdown.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Cancel detaches the subscription and closes its channel. Idempotent.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

// Subscribe registers a subscriber for the given topics; no topics means all
// topics.
func (b *Bus) Subscribe(topics ...Topic) *Subscription {
	sub := &Subscription{
		bus: b,
		ch:  make(chan Event, b.buffer),
	}
	if len(topics) > 0 {
		sub.topics = make(map[Topic]struct{}, len(topics))
		for _, t := range topics {
			sub.topics[t] = struct{}{}
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Publish delivers an event to every matching subscriber without blocking.
func (b *Bus) Publish(topic Topic, value bool) {
	if topic >= topicCount {
		return
	}
	event := Event{Topic: topic, Value: value, At: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		if sub.topics != nil {
			if _, ok := sub.topics[topic]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many events were lost to full subscriber buffers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close detaches and closes every subscription. Later publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	detached := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		detached = append(detached, sub)
		delete(b.subs, sub)
	}
	b.mu.Unlock()

	// Closing outside the lock: Cancel's body takes the same lock.
	for _, sub := range detached {
		sub.once.Do(func() { close(sub.ch) })
	}
}
