package service

import (
	"sync"
	"testing"
	"time"

	"monitoring_station/internal/logger"
	"monitoring_station/internal/repository"
)

// scenarioBuzzer records the full call history so the test can assert
// the buzzer's trajectory, not just its final state.
type scenarioBuzzer struct {
	mu    sync.Mutex
	calls []bool
}

func (b *scenarioBuzzer) SetState(on bool) bool {
	b.mu.Lock()
	b.calls = append(b.calls, on)
	b.mu.Unlock()
	return true
}

func (b *scenarioBuzzer) last(t *testing.T) bool {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.calls) == 0 {
		t.Fatalf("no buzzer calls recorded")
	}
	return b.calls[len(b.calls)-1]
}

type scenarioNotifier struct{}

func (scenarioNotifier) Publish(string, any) {}

func alarmPayload(id, status string) []byte {
	return []byte(`{"method":"ALARM","params":{"id":{"id":"` + id + `"},"createdTime":1735689600000,"type":"Temperature out of range","originatorName":"refri","status":"` + status + `"}}`)
}

// Full lifecycle: activation, mute, mid-mute activation, clearing.
func TestAlertLifecycle_EndToEnd(t *testing.T) {
	store := repository.NewAlertMemory()
	buzzer := &scenarioBuzzer{}
	mute := NewMuteService(store, buzzer, scenarioNotifier{}, time.Minute, logger.Get(logger.ErrorLevel))
	alerts := NewAlertService(store, mute, scenarioNotifier{}, logger.Get(logger.ErrorLevel))

	// Activate A1 while unmuted with an empty store.
	alerts.HandleAlarmPayload(alarmPayload("A1", "ACTIVE_UNACK"))
	if got := len(store.Snapshot()); got != 1 {
		t.Fatalf("store = %d alerts, want {A1}", got)
	}
	if !buzzer.last(t) {
		t.Fatalf("buzzer off after first activation")
	}

	// User toggles mute.
	st := mute.Toggle()
	if !st.Muted || st.ExpiresAt == nil {
		t.Fatalf("toggle did not mute: %+v", st)
	}
	deadline, err := time.Parse(time.RFC3339, *st.ExpiresAt)
	if err != nil {
		t.Fatalf("bad deadline: %v", err)
	}
	if d := time.Until(deadline); d < 50*time.Second || d > 70*time.Second {
		t.Fatalf("deadline %v not about a minute out", d)
	}
	if buzzer.last(t) {
		t.Fatalf("buzzer on during mute window")
	}

	// A second alarm lands mid-mute: the window breaks immediately.
	alerts.HandleAlarmPayload(alarmPayload("A2", "ACTIVE_UNACK"))
	if st := mute.Status(); st.Muted {
		t.Fatalf("mute survived an activation")
	}
	if !buzzer.last(t) {
		t.Fatalf("buzzer off after mid-mute activation")
	}
	if got := len(store.Snapshot()); got != 2 {
		t.Fatalf("store = %d alerts, want {A1,A2}", got)
	}
	assertMuteInvariant(t, mute)

	// Clear A1: A2 keeps the buzzer going.
	alerts.HandleAlarmPayload(alarmPayload("A1", "CLEARED_UNACK"))
	if got := len(store.Snapshot()); got != 1 {
		t.Fatalf("store = %d alerts, want {A2}", got)
	}
	if !buzzer.last(t) {
		t.Fatalf("buzzer dropped while A2 still active")
	}

	// Clear A2: everything quiet.
	alerts.HandleAlarmPayload(alarmPayload("A2", "CLEARED_UNACK"))
	if !store.IsEmpty() {
		t.Fatalf("store not empty at end")
	}
	if buzzer.last(t) {
		t.Fatalf("buzzer on with no active alerts")
	}
	assertMuteInvariant(t, mute)
}
