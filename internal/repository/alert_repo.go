package repository

import (
	"sync"

	monitoring "monitoring_station"
)

// AlertMemory keeps active alerts in a mutex-guarded map. Alerts are
// intentionally not persisted: after a restart only live conditions
// reported by the feeds repopulate the set.
type AlertMemory struct {
	mu     sync.Mutex
	alerts map[string]monitoring.Alert
}

func NewAlertMemory() *AlertMemory {
	return &AlertMemory{
		alerts: make(map[string]monitoring.Alert),
	}
}

// Upsert inserts or overwrites the alert keyed by its id.
func (r *AlertMemory) Upsert(alert monitoring.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts[alert.ID] = alert
}

// Remove deletes the alert with the given id, returning it and whether
// it existed.
func (r *AlertMemory) Remove(id string) (monitoring.Alert, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[id]
	if ok {
		delete(r.alerts, id)
	}
	return alert, ok
}

// Snapshot returns a copy of all active alerts in no particular order.
func (r *AlertMemory) Snapshot() []monitoring.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]monitoring.Alert, 0, len(r.alerts))
	for _, a := range r.alerts {
		out = append(out, a)
	}
	return out
}

// IsEmpty reports whether no alert is currently active.
func (r *AlertMemory) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts) == 0
}
