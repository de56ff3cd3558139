package repository

import (
	monitoring "monitoring_station"
)

// AlertRepo is the canonical set of currently-active alerts. An id is
// present iff its underlying condition is active and not user-removed.
// Implementations must be safe for concurrent callers and never block
// on I/O.
type AlertRepo interface {
	Upsert(alert monitoring.Alert)
	Remove(id string) (monitoring.Alert, bool)
	Snapshot() []monitoring.Alert
	IsEmpty() bool
}

// VectorRepo tracks the last-known refrigerator status vector so the
// differ can turn vectors into edge-triggered transitions.
type VectorRepo interface {
	// Swap stores next and returns the previous vector atomically.
	Swap(next []int) []int
}

type Repository struct {
	Alerts AlertRepo
	Vector VectorRepo
}

func NewRepository() *Repository {
	return &Repository{
		Alerts: NewAlertMemory(),
		Vector: NewVectorMemory(),
	}
}
