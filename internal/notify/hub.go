package notify

import (
	"sync"

	"github.com/cvlens/cvlens/internal/models"
)

// subscriberBuffer is how many events a subscriber may lag before it
// starts missing them.
const subscriberBuffer = 16

// Hub fans status events out to in-process subscribers. Publishing
// never blocks: a subscriber that stops draining misses events instead
// of stalling the pipeline.
type Hub struct {
	mu   sync.Mutex
	subs map[int]chan models.StatusEvent
	next int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan models.StatusEvent)}
}

// Subscribe registers a listener and returns its event channel plus a
// cancel function. Cancel closes the channel; calling it twice is safe.
func (h *Hub) Subscribe() (<-chan models.StatusEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan models.StatusEvent, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// NotifyStatus delivers the event to every subscriber that has room.
// Sends happen under the lock so a concurrent cancel cannot close a
// channel mid-send.
func (h *Hub) NotifyStatus(event *models.StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- *event:
		default:
		}
	}
}

// Close drops every subscriber.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
	return nil
}

var _ Notifier = (*Hub)(nil)
