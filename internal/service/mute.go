package service

import (
	"sync"
	"time"

	monitoring "monitoring_station"
	"monitoring_station/internal/events"
	"monitoring_station/internal/logger"
)

// alertEmptiness is the one thing the mute controller needs from the
// alert store.
type alertEmptiness interface {
	IsEmpty() bool
}

// buzzerSwitch is the one thing it needs from the buzzer.
type buzzerSwitch interface {
	SetState(on bool) bool
}

// MuteService owns the {muted, deadline, timer} triple behind a single
// mutex. Every mutation bumps a generation counter so a timer that
// fires after being superseded observes the newer generation and does
// nothing.
type MuteService struct {
	store    alertEmptiness
	buzzer   buzzerSwitch
	notifier Notifier
	duration time.Duration
	log      *logger.Logger

	mu         sync.Mutex
	muted      bool
	deadline   *time.Time
	timer      *time.Timer
	generation uint64

	now func() time.Time
}

func NewMuteService(store alertEmptiness, buzzer buzzerSwitch, notifier Notifier, duration time.Duration, log *logger.Logger) *MuteService {
	return &MuteService{
		store:    store,
		buzzer:   buzzer,
		notifier: notifier,
		duration: duration,
		log:      log,
		now:      time.Now,
	}
}

// Status returns the externally visible mute state.
func (s *MuteService) Status() monitoring.MuteStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *MuteService) statusLocked() monitoring.MuteStatus {
	st := monitoring.MuteStatus{Muted: s.muted}
	if s.deadline != nil {
		expires := s.deadline.UTC().Format(time.RFC3339)
		st.ExpiresAt = &expires
	}
	return st
}

// Toggle implements the user mute command. Muting with no active
// alerts is meaningless, so that case returns the current state
// unchanged.
func (s *MuteService) Toggle() monitoring.MuteStatus {
	s.mu.Lock()
	muted := s.muted
	s.mu.Unlock()

	if muted {
		if s.clearMute() {
			s.notifyChanged()
		}
		s.buzzer.SetState(!s.store.IsEmpty())
		return s.Status()
	}

	if s.store.IsEmpty() {
		return s.Status()
	}
	return s.mute()
}

// mute opens a fresh mute window, superseding any running timer.
func (s *MuteService) mute() monitoring.MuteStatus {
	deadline := s.now().Add(s.duration)

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.stopTimerLocked()
	s.muted = true
	s.deadline = &deadline
	s.timer = time.AfterFunc(s.duration, func() { s.onTimerFired(gen) })
	s.mu.Unlock()

	s.log.Infow("alerts_muted", "until", deadline.UTC().Format(time.RFC3339))
	s.buzzer.SetState(false)
	s.notifyChanged()
	return s.Status()
}

// onTimerFired is the deadline callback. A stale generation means the
// window was cancelled or replaced after this timer was armed.
func (s *MuteService) onTimerFired(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || !s.muted {
		s.mu.Unlock()
		return
	}
	s.generation++
	s.muted = false
	s.deadline = nil
	s.timer = nil
	s.mu.Unlock()

	s.log.Infow("mute_window_expired")
	s.buzzer.SetState(!s.store.IsEmpty())
	s.notifyChanged()
}

// OnAlertActivated runs the activation side effects: an incoming alert
// always interrupts a mute window, and the buzzer comes on.
func (s *MuteService) OnAlertActivated() {
	if s.clearMute() {
		s.log.Infow("mute_interrupted_by_alert")
		s.notifyChanged()
	}
	s.buzzer.SetState(true)
}

// OnAlertsCleared runs when the store transitions to empty: any mute
// residue is dropped and the buzzer goes silent.
func (s *MuteService) OnAlertsCleared() {
	if s.clearMute() {
		s.notifyChanged()
	}
	s.buzzer.SetState(false)
}

// clearMute cancels any window and timer; reports whether anything was
// actually cleared.
func (s *MuteService) clearMute() bool {
	s.mu.Lock()
	changed := s.muted || s.deadline != nil || s.timer != nil
	s.generation++
	s.stopTimerLocked()
	s.muted = false
	s.deadline = nil
	s.mu.Unlock()
	return changed
}

func (s *MuteService) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *MuteService) notifyChanged() {
	s.notifier.Publish(events.MuteChanged, s.Status())
}
