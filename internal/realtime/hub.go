package realtime

import (
	"sync"
	"time"
)

const (
	EventTransactionSubmitted = "transaction.submitted"
	EventTransactionSettled   = "transaction.settled"
	EventKYCReviewed          = "kyc.reviewed"
	EventLoanUpdated          = "loan.updated"
)

type Event struct {
	Type    string    `json:"type"`
	Topic   string    `json:"-"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// UserTopic is the topic carrying events for one user.
func UserTopic(userID string) string {
	return "user:" + userID
}

// Hub fans events out to in-process subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}

	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
	}
}

type Subscription struct {
	C <-chan Event

	id     uint64
	ch     chan Event
	topics map[string]struct{}
	hub    *Hub
	once   sync.Once
}

// Subscribe registers for events on any of topics.
func (h *Hub) Subscribe(topics ...string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ch := make(chan Event, h.buffer)

	sub := &Subscription{
		C:      ch,
		id:     h.nextID,
		ch:     ch,
		topics: make(map[string]struct{}, len(topics)),
		hub:    h,
	}
	for _, topic := range topics {
		sub.topics[topic] = struct{}{}
	}

	h.subs[sub.id] = sub
	return sub
}

// Publish delivers e to every matching subscriber and returns how many
// received it.
func (h *Hub) Publish(e Event) int {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.subs {
		if _, ok := sub.topics[e.Topic]; !ok {
			continue
		}

		select {
		case sub.ch <- e:
			delivered++
		default:
		}
	}

	return delivered
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unregisters the subscription and closes its channel. It is safe to
// call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		s.hub.mu.Unlock()

		close(s.ch)
	})
}
