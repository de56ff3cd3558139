package events

import (
	"sync"

	"monitoring_station/internal/logger"

	"github.com/google/uuid"
)

// Notification types consumed by the front end.
const (
	AlertAdded          = "alerts://added"
	AlertRemoved        = "alerts://removed"
	MuteChanged         = "alerts://mute_changed"
	DeviceStatusChanged = "device://status_changed"
)

// Event is one outbound notification.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// subscriberBuffer bounds how far a slow front end may lag before it
// starts losing events. Notifications are advisory: the front end can
// always re-sync from GET /api/v1/alerts.
const subscriberBuffer = 16

// Hub fans notifications out to connected front-end subscribers.
// Publish never blocks on a slow subscriber.
type Hub struct {
	mu   sync.Mutex
	subs map[string]chan Event
	log  *logger.Logger
}

// NewHub returns an empty hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		subs: make(map[string]chan Event),
		log:  log,
	}
}

// Subscribe registers a new subscriber and returns its id and channel.
// The channel is closed by Unsubscribe.
func (h *Hub) Subscribe() (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids
// are ignored so teardown paths can call it unconditionally.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()

	if ok {
		close(ch)
	}
}

// Publish delivers an event to every subscriber. A subscriber whose
// buffer is full loses this event.
func (h *Hub) Publish(eventType string, data any) {
	ev := Event{Type: eventType, Data: data}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			if h.log != nil {
				h.log.Warnw("event_dropped_slow_subscriber", "subscriber", id, "type", eventType)
			}
		}
	}
}

// SubscriberCount reports how many front-end connections are attached.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
