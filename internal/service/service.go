package service

import (
	monitoring "monitoring_station"
	"monitoring_station/internal/config"
	"monitoring_station/internal/logger"
	"monitoring_station/internal/repository"
)

// Notifier delivers outbound notifications to the front end.
// events.Hub satisfies it.
type Notifier interface {
	Publish(eventType string, data any)
}

// Alerts is the alert lifecycle coordinator: it turns inbound alarm
// events into store mutations plus mute/buzzer side effects.
type Alerts interface {
	// HandleAlarmPayload consumes one raw MQTT RPC payload. Malformed
	// payloads are logged and dropped.
	HandleAlarmPayload(payload []byte)
	// ActivateAlert runs the activation path for an already-built alert.
	ActivateAlert(alert monitoring.Alert)
	// ClearAlert runs the clearing path; reports whether the id existed.
	ClearAlert(id string) bool
	// RemoveAlert is the user-initiated removal command.
	RemoveAlert(id string) bool
	// Snapshot lists all currently-active alerts.
	Snapshot() []monitoring.Alert
}

// Mute tracks the buzzer mute window.
type Mute interface {
	Status() monitoring.MuteStatus
	Toggle() monitoring.MuteStatus
}

// Buzzer drives the physical buzzer line.
type Buzzer interface {
	// SetState turns the buzzer blink loop on or off; the returned
	// flag reports hardware success.
	SetState(on bool) bool
}

// Refrigerators consumes realtime status vectors and diffs them into
// per-refrigerator temperature alerts.
type Refrigerators interface {
	HandleStatusVector(message, commitTimestamp string) error
}

// Connectivity tracks upstream feed reachability.
type Connectivity interface {
	SetMQTTConnected(up bool)
	SetRealtimeConnected(up bool)
	IsMQTTConnected() bool
	IsRealtimeConnected() bool
	CheckInternet() bool
	Status() monitoring.ConnectivityStatus
}

// Service aggregates all sub-services.
type Service struct {
	Alerts
	Mute
	Buzzer
	Refrigerators
	Connectivity
}

// NewService wires the repository layer and notification hub into the
// concrete services. Ordering matters: the buzzer has no dependencies,
// the mute controller drives the buzzer, and the coordinator drives
// both.
func NewService(repos *repository.Repository, notifier Notifier, cfg *config.Config, log *logger.Logger) *Service {
	buzzer := NewBuzzerService(cfg.BuzzerEnabled, log.Named("buzzer"))
	mute := NewMuteService(repos.Alerts, buzzer, notifier, cfg.MuteDuration(), log.Named("mute"))
	alerts := NewAlertService(repos.Alerts, mute, notifier, log.Named("alerts"))
	refrigerators := NewRefrigeratorService(repos.Vector, alerts, notifier, cfg.DisplayLocation(), log.Named("refrigerator"))

	return &Service{
		Alerts:        alerts,
		Mute:          mute,
		Buzzer:        buzzer,
		Refrigerators: refrigerators,
		Connectivity:  NewConnectivityService(),
	}
}
