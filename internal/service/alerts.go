package service

import (
	"encoding/json"
	"strings"
	"time"

	monitoring "monitoring_station"
	"monitoring_station/internal/events"
	"monitoring_station/internal/logger"
	"monitoring_station/internal/repository"
)

// alertTimeLayout renders alarm times for the operator display.
const alertTimeLayout = "02/01/2006 15:04:05"

const (
	rpcAlarmMethod     = "ALARM"
	statusActiveUnack  = "ACTIVE_UNACK"
	statusClearedUnack = "CLEARED_UNACK"
)

// Alarm types reported by the telemetry platform.
const (
	alarmTypeTemperature = "Temperature out of range"
	alarmTypeInactivity  = "Inactivity TimeOut"
)

// Fallback descriptions shown to the operator.
const (
	descTemperatureDefault = "Temperatura fuera de rango"
	descDisconnected       = "Dispositivo desconectado"
	descUnavailable        = "Detalle no disponible"
)

// Wire shape of the alarm RPC envelope (camelCase, per the platform).
type alarmEnvelope struct {
	Method string      `json:"method"`
	Params alarmParams `json:"params"`
}

type alarmParams struct {
	ID             alarmEntityID `json:"id"`
	CreatedTime    int64         `json:"createdTime"`
	Type           string        `json:"type"`
	OriginatorName string        `json:"originatorName"`
	Status         string        `json:"status"`
	Details        *alarmDetails `json:"details"`
}

type alarmEntityID struct {
	ID string `json:"id"`
}

type alarmDetails struct {
	Data *string `json:"data"`
}

// muteCoordinator is what the coordinator needs from the mute
// controller: the two alert-driven transitions.
type muteCoordinator interface {
	OnAlertActivated()
	OnAlertsCleared()
}

// AlertService is the alert lifecycle coordinator. Handler sequences
// (store mutation, then side effects, then notification) run in caller
// order per source; no coordinator state of its own beyond its
// collaborators.
type AlertService struct {
	store    repository.AlertRepo
	mute     muteCoordinator
	notifier Notifier
	log      *logger.Logger
}

func NewAlertService(store repository.AlertRepo, mute muteCoordinator, notifier Notifier, log *logger.Logger) *AlertService {
	return &AlertService{
		store:    store,
		mute:     mute,
		notifier: notifier,
		log:      log,
	}
}

// HandleAlarmPayload parses and dispatches one alarm RPC payload.
// Anything malformed is dropped with a warning; the coordinator never
// lets a bad payload propagate a failure upstream.
func (s *AlertService) HandleAlarmPayload(payload []byte) {
	var env alarmEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		s.log.Warnw("alarm_payload_unparseable", "err", err)
		return
	}
	if !strings.EqualFold(env.Method, rpcAlarmMethod) {
		s.log.Debugw("rpc_method_ignored", "method", env.Method)
		return
	}
	if env.Params.ID.ID == "" {
		s.log.Warnw("alarm_payload_missing_id")
		return
	}

	switch env.Params.Status {
	case statusActiveUnack:
		s.ActivateAlert(alertFromParams(env.Params))
	case statusClearedUnack:
		s.ClearAlert(env.Params.ID.ID)
	default:
		s.log.Warnw("alarm_status_unhandled", "status", env.Params.Status, "id", env.Params.ID.ID)
	}
}

// ActivateAlert caches the alert, interrupts any mute window, turns
// the buzzer on and notifies the front end.
func (s *AlertService) ActivateAlert(alert monitoring.Alert) {
	s.log.Infow("alert_activated", "id", alert.ID, "type", alert.Type, "device", alert.Device)
	s.store.Upsert(alert)
	s.mute.OnAlertActivated()
	s.notifier.Publish(events.AlertAdded, alert)
}

// ClearAlert removes the alert if present. When the store drains, the
// mute window is dropped and the buzzer silenced.
func (s *AlertService) ClearAlert(id string) bool {
	if _, ok := s.store.Remove(id); !ok {
		s.log.Debugw("alert_clear_unknown_id", "id", id)
		return false
	}

	s.log.Infow("alert_cleared", "id", id)
	s.notifier.Publish(events.AlertRemoved, monitoring.AlertRemoval{ID: id})
	if s.store.IsEmpty() {
		s.mute.OnAlertsCleared()
	}
	return true
}

// RemoveAlert is the user acknowledge/remove command; it shares the
// clearing path with CLEARED_UNACK.
func (s *AlertService) RemoveAlert(id string) bool {
	return s.ClearAlert(id)
}

// Snapshot lists active alerts for the front end.
func (s *AlertService) Snapshot() []monitoring.Alert {
	return s.store.Snapshot()
}

func alertFromParams(p alarmParams) monitoring.Alert {
	return monitoring.Alert{
		ID:          p.ID.ID,
		DateTime:    formatTimestampMillis(p.CreatedTime),
		Type:        mapAlertType(p.Type),
		Device:      p.OriginatorName,
		Description: mapDescription(p.Type, p.Details),
	}
}

func formatTimestampMillis(ms int64) string {
	return time.UnixMilli(ms).Local().Format(alertTimeLayout)
}

// mapAlertType translates platform alarm types; unknown types default
// to a temperature alert so they still surface prominently.
func mapAlertType(alarmType string) monitoring.AlertType {
	switch alarmType {
	case alarmTypeTemperature:
		return monitoring.AlertTempUp
	case alarmTypeInactivity:
		return monitoring.AlertDisconnect
	default:
		return monitoring.AlertTempUp
	}
}

func mapDescription(alarmType string, details *alarmDetails) string {
	switch alarmType {
	case alarmTypeTemperature:
		if details != nil && details.Data != nil {
			return *details.Data
		}
		return descTemperatureDefault
	case alarmTypeInactivity:
		return descDisconnected
	default:
		return descUnavailable
	}
}
