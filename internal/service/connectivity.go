package service

import (
	"net"
	"sync/atomic"
	"time"

	monitoring "monitoring_station"
)

const (
	// internetProbeAddr is a well-known public DNS endpoint; reaching
	// it is taken as "the internet is up".
	internetProbeAddr    = "8.8.8.8:53"
	internetProbeTimeout = 2 * time.Second
)

// ConnectivityService carries the per-feed connectivity flags the
// reconnection loops maintain, plus an on-demand internet probe.
type ConnectivityService struct {
	mqtt     atomic.Bool
	realtime atomic.Bool

	dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

func NewConnectivityService() *ConnectivityService {
	return &ConnectivityService{
		dial: net.DialTimeout,
	}
}

func (s *ConnectivityService) SetMQTTConnected(up bool)     { s.mqtt.Store(up) }
func (s *ConnectivityService) SetRealtimeConnected(up bool) { s.realtime.Store(up) }
func (s *ConnectivityService) IsMQTTConnected() bool        { return s.mqtt.Load() }
func (s *ConnectivityService) IsRealtimeConnected() bool    { return s.realtime.Load() }

// CheckInternet probes TCP reachability of a public DNS endpoint with
// a short timeout.
func (s *ConnectivityService) CheckInternet() bool {
	conn, err := s.dial("tcp", internetProbeAddr, internetProbeTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Status bundles all three reachability flags for the front end.
func (s *ConnectivityService) Status() monitoring.ConnectivityStatus {
	return monitoring.ConnectivityStatus{
		Internet: s.CheckInternet(),
		MQTT:     s.IsMQTTConnected(),
		Realtime: s.IsRealtimeConnected(),
	}
}
