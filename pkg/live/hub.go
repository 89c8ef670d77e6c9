// Package live fans order and chat events out to subscribers. A
// subscription lives until Close is called or the hub shuts down; the
// owner of a subscription is responsible for closing it.
package live

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ridebook/pkg/models"
)

const (
	EventOrderUpdated = "order.updated"
	EventOrderCreated = "order.created"
	EventMessageNew   = "message.new"
)

type Event struct {
	Topic string      `json:"topic"`
	Type  string      `json:"type"`
	Data  interface{} `json:"data"`
	At    time.Time   `json:"at"`
}

// Publisher is what services publish through: the local Hub, or a relay
// that forwards to every instance's hub.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

func OrderTopic(orderID string) string { return "order:" + orderID }
func ChatTopic(chatID string) string   { return "chat:" + chatID }

func IncomingTopic(service models.ServiceType, city string) string {
	return "incoming:" + string(service) + ":" + city
}

const defaultBuffer = 16

type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	closed bool
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{topics: make(map[string]map[*Subscription]struct{}), buffer: buffer}
}

type Subscription struct {
	hub     *Hub
	topic   string
	ch      chan Event
	dropped atomic.Int64

	// closed is guarded by hub.mu, the only lock either close path takes.
	closed bool
}

func (s *Subscription) C() <-chan Event { return s.ch }
func (s *Subscription) Topic() string   { return s.topic }

// Dropped counts events discarded because the buffer was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Close detaches the subscription and closes its channel. Safe to call more
// than once and concurrently with Publish.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Subscribe registers a subscriber on topic. On a closed hub the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe(topic string) *Subscription {
	sub := &Subscription{hub: h, topic: topic, ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.closed = true
		close(sub.ch)
		return sub
	}
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
	if subs, ok := h.topics[sub.topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.topics, sub.topic)
		}
	}
}

// Publish delivers evt to every subscriber of evt.Topic without blocking.
func (h *Hub) Publish(_ context.Context, evt Event) error {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.topics[evt.Topic] {
		select {
		case sub.ch <- evt:
		default:
			sub.dropped.Add(1)
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close ends every subscription. Later subscriptions are born closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for topic, subs := range h.topics {
		for sub := range subs {
			if !sub.closed {
				sub.closed = true
				close(sub.ch)
			}
		}
		delete(h.topics, topic)
	}
}
