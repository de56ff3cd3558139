package handlers

import (
	monitoring "monitoring_station"
	"monitoring_station/internal/events"
	"monitoring_station/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAlerts struct {
	snapshot []monitoring.Alert

	removeOK     bool
	removeCalls  int
	lastRemoveID string
	payloads     [][]byte
}

func (m *mockAlerts) HandleAlarmPayload(payload []byte) {
	m.payloads = append(m.payloads, append([]byte(nil), payload...))
}
func (m *mockAlerts) ActivateAlert(alert monitoring.Alert) {
	m.snapshot = append(m.snapshot, alert)
}
func (m *mockAlerts) ClearAlert(id string) bool { return m.RemoveAlert(id) }
func (m *mockAlerts) RemoveAlert(id string) bool {
	m.removeCalls++
	m.lastRemoveID = id
	return m.removeOK
}
func (m *mockAlerts) Snapshot() []monitoring.Alert { return m.snapshot }

type mockMute struct {
	status      monitoring.MuteStatus
	toggleCalls int
}

func (m *mockMute) Status() monitoring.MuteStatus { return m.status }
func (m *mockMute) Toggle() monitoring.MuteStatus {
	m.toggleCalls++
	m.status.Muted = !m.status.Muted
	return m.status
}

type mockBuzzer struct {
	lastState bool
}

func (m *mockBuzzer) SetState(on bool) bool {
	m.lastState = on
	return true
}

type mockRefrigerators struct {
	lastMessage   string
	lastTimestamp string
	err           error
}

func (m *mockRefrigerators) HandleStatusVector(message, commitTimestamp string) error {
	m.lastMessage = message
	m.lastTimestamp = commitTimestamp
	return m.err
}

type mockConnectivity struct {
	status monitoring.ConnectivityStatus
}

func (m *mockConnectivity) SetMQTTConnected(up bool)     { m.status.MQTT = up }
func (m *mockConnectivity) SetRealtimeConnected(up bool) { m.status.Realtime = up }
func (m *mockConnectivity) IsMQTTConnected() bool        { return m.status.MQTT }
func (m *mockConnectivity) IsRealtimeConnected() bool    { return m.status.Realtime }
func (m *mockConnectivity) CheckInternet() bool          { return m.status.Internet }
func (m *mockConnectivity) Status() monitoring.ConnectivityStatus {
	return m.status
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service, hub *events.Hub) *gin.Engine {
	h := NewHandler(s, hub, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
