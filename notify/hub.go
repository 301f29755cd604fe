package notify

import (
	"context"
	"sync"
	"time"

	auth "github.com/goliatone/go-storefront-auth"
)

// BroadcastTopic reaches every connected client
const BroadcastTopic = "broadcast"

// DefaultBuffer is the per subscription queue length
const DefaultBuffer = 16

// UserTopic is the private topic of one identity
func UserTopic(userID string) string {
	return "user:" + userID
}

// Message is what subscribers receive. Payload is opaque to the hub.
type Message struct {
	Topic   string    `json:"topic"`
	Type    string    `json:"type"`
	Payload any       `json:"payload,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// Subscription receives messages for a single topic until closed
type Subscription struct {
	topic string
	ch    chan Message
	hub   *Hub
	once  sync.Once
}

// C is closed when the subscription or the hub is closed
func (s *Subscription) C() <-chan Message {
	return s.ch
}

func (s *Subscription) Topic() string {
	return s.topic
}

// Close detaches the subscription from the hub
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub is an in-process pub/sub. Publishing never blocks: a subscriber whose
// queue is full misses the message.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
	buffer int
	logger auth.Logger
}

// Option configures a Hub
type Option func(*Hub)

func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func WithLogger(l auth.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:   map[string]map[*Subscription]struct{}{},
		buffer: DefaultBuffer,
		logger: nopLogger{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers interest in topic. On a closed hub the returned
// subscription is already closed.
func (h *Hub) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan Message, h.buffer),
		hub:   h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}

	if h.subs[topic] == nil {
		h.subs[topic] = map[*Subscription]struct{}{}
	}
	h.subs[topic][sub] = struct{}{}
	return sub
}

// Publish fans msg out to the topic and returns how many subscribers got it
func (h *Hub) Publish(ctx context.Context, topic string, msg Message) int {
	if err := ctx.Err(); err != nil {
		return 0
	}

	msg.Topic = topic
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return 0
	}

	delivered := 0
	for sub := range h.subs[topic] {
		select {
		case sub.ch <- msg:
			delivered++
		default:
			h.logger.Warn("notify: dropped message for slow subscriber", "type", msg.Type, "topic", topic)
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions on topic
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

// Close ends every subscription. Further publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for topic, subs := range h.subs {
		for sub := range subs {
			sub.once.Do(func() { close(sub.ch) })
		}
		delete(h.subs, topic)
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subs[sub.topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, sub.topic)
		}
	}
	sub.once.Do(func() { close(sub.ch) })
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
