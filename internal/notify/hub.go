package notify

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/yourusername/mailfeed/internal/models"
)

// subscriberBuffer is how many undelivered events a push-stream client
// may lag behind before it is dropped. Dropped clients recover via the
// cursor-based catch-up read.
const subscriberBuffer = 16

// Subscriber is one live push-stream connection. Events arrives until
// the hub drops the subscriber or Unsubscribe is called, after which the
// channel is closed.
type Subscriber struct {
	ID     string
	Events chan models.Event
}

// Hub fans "new message" events out to every connected push-stream
// subscriber. Delivery is best-effort, at-most-once per subscriber.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]*Subscriber
	seq    int64
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[string]*Subscriber), logger: logger}
}

// Subscribe registers a new push-stream connection.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		ID:     uuid.New().String(),
		Events: make(chan models.Event, subscriberBuffer),
	}
	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes a connection and closes its event channel. Safe to
// call after the hub already dropped the subscriber.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(id)
}

// remove must be called with h.mu held.
func (h *Hub) remove(id string) {
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.Events)
	}
}

// Len reports the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast writes one event to every active subscriber. A subscriber
// whose buffer is full counts as a failed write and is removed; the rest
// still receive the event.
func (h *Hub) Broadcast(messageID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	ev := models.Event{MessageID: messageID, Seq: h.seq}

	for id, sub := range h.subs {
		select {
		case sub.Events <- ev:
		default:
			h.logger.Warn("dropping slow push-stream subscriber", "subscriber", id)
			h.remove(id)
		}
	}
}
