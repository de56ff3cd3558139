package events

import (
	"testing"
)

func TestHub_PublishReachesAllSubscribers(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	id1, ch1 := h.Subscribe()
	id2, ch2 := h.Subscribe()
	defer h.Unsubscribe(id1)
	defer h.Unsubscribe(id2)

	h.Publish(AlertAdded, map[string]string{"id": "a1"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != AlertAdded {
				t.Fatalf("subscriber %d: type = %q, want %q", i, ev.Type, AlertAdded)
			}
		default:
			t.Fatalf("subscriber %d: no event delivered", i)
		}
	}
}

func TestHub_UnsubscribeClosesChannelAndStopsDelivery(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	id, ch := h.Subscribe()
	h.Unsubscribe(id)

	if _, open := <-ch; open {
		t.Fatalf("channel still open after Unsubscribe")
	}
	if n := h.SubscriberCount(); n != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", n)
	}

	// Publishing after unsubscribe must not panic.
	h.Publish(MuteChanged, nil)

	// Double unsubscribe is a no-op.
	h.Unsubscribe(id)
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	id, ch := h.Subscribe()
	defer h.Unsubscribe(id)

	// Overfill the buffer; Publish must return without blocking.
	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish(DeviceStatusChanged, i)
	}

	if got := len(ch); got != subscriberBuffer {
		t.Fatalf("buffered events = %d, want %d", got, subscriberBuffer)
	}
}
