package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	monitoring "monitoring_station"
	"monitoring_station/internal/events"
	"monitoring_station/internal/logger"
	"monitoring_station/internal/repository"
)

// displayTimeLayout renders realtime commit timestamps.
const displayTimeLayout = "2006-01-02 15:04:05"

const (
	refrigeratorAlertPrefix      = "refrigerator-temp-"
	refrigeratorAlarmDescription = "Temperatura fuera de rango 2 - 8 °C"
)

// refrigeratorNames maps vector index to the monitored unit. Order is
// fixed by the sender.
var refrigeratorNames = [repository.VectorSize]string{
	"Bodega - microbiología refri 2",
	"Bodega - microbiología refri 1",
	"Bodega - química refri 1",
	"Bodega - banco de sangre",
	"Bodega - química refri 2",
	"Bodega - Inmunología refri 1",
}

// alertRouter is what the differ needs from the coordinator.
type alertRouter interface {
	ActivateAlert(alert monitoring.Alert)
	ClearAlert(id string) bool
}

// RefrigeratorService diffs consecutive status vectors into
// edge-triggered temperature alerts: a 0→1 flip raises, 1→0 clears,
// steady state does nothing.
type RefrigeratorService struct {
	vector   repository.VectorRepo
	alerts   alertRouter
	notifier Notifier
	display  *time.Location
	log      *logger.Logger

	now func() time.Time
}

func NewRefrigeratorService(vector repository.VectorRepo, alerts alertRouter, notifier Notifier, display *time.Location, log *logger.Logger) *RefrigeratorService {
	return &RefrigeratorService{
		vector:   vector,
		alerts:   alerts,
		notifier: notifier,
		display:  display,
		log:      log,
		now:      time.Now,
	}
}

// HandleStatusVector validates and applies one inbound vector. An
// invalid payload is rejected without touching stored state. The
// device-status notification goes out on every valid vector, flips or
// not.
func (s *RefrigeratorService) HandleStatusVector(message, commitTimestamp string) error {
	vec, err := parseStatusVector(message)
	if err != nil {
		s.log.Errorw("status_vector_rejected", "err", err, "message", message)
		return err
	}

	timestamp := s.displayTimestamp(commitTimestamp)
	previous := s.vector.Swap(vec)
	s.log.Infow("status_vector_applied", "status", vec, "timestamp", timestamp)

	for i, current := range vec {
		if i >= len(refrigeratorNames) || i >= len(previous) {
			break
		}
		if current == previous[i] {
			continue
		}

		id := refrigeratorAlertPrefix + strconv.Itoa(i)
		device := refrigeratorNames[i]
		if current == 1 {
			s.log.Infow("refrigerator_alarm_raised", "id", id, "device", device)
			s.alerts.ActivateAlert(monitoring.Alert{
				ID:          id,
				DateTime:    s.now().Format(alertTimeLayout),
				Type:        monitoring.AlertTempUp,
				Device:      device,
				Description: refrigeratorAlarmDescription,
			})
		} else if s.alerts.ClearAlert(id) {
			s.log.Infow("refrigerator_alarm_cleared", "id", id, "device", device)
		}
	}

	s.notifier.Publish(events.DeviceStatusChanged, monitoring.DeviceStatusUpdate{
		Timestamp: timestamp,
		Status:    vec,
	})
	return nil
}

// parseStatusVector enforces exactly VectorSize entries, each 0 or 1.
func parseStatusVector(message string) ([]int, error) {
	var values []int
	if err := json.Unmarshal([]byte(message), &values); err != nil {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}
	if len(values) != repository.VectorSize {
		return nil, fmt.Errorf("expected exactly %d elements, got %d", repository.VectorSize, len(values))
	}
	for i, v := range values {
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("element %d is %d, must be 0 or 1", i, v)
		}
	}
	return values, nil
}

// displayTimestamp converts an RFC3339 UTC commit timestamp into the
// configured display offset; unparseable input falls back to the
// current local time.
func (s *RefrigeratorService) displayTimestamp(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return s.now().Format(displayTimeLayout)
	}
	return t.In(s.display).Format(displayTimeLayout)
}
