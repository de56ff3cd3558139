package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"monitoring_station/internal/backoff"
	"monitoring_station/internal/config"
	"monitoring_station/internal/logger"
)

type vectorSinkStub struct {
	mu    sync.Mutex
	calls []struct{ message, timestamp string }
	err   error
}

func (s *vectorSinkStub) HandleStatusVector(message, commitTimestamp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, struct{ message, timestamp string }{message, commitTimestamp})
	return s.err
}

type realtimeStatusStub struct {
	mu      sync.Mutex
	history []bool
}

func (s *realtimeStatusStub) SetRealtimeConnected(up bool) {
	s.mu.Lock()
	s.history = append(s.history, up)
	s.mu.Unlock()
}

func (s *realtimeStatusStub) snapshot() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.history...)
}

// wsConnStub scripts the frames a session reads and records writes.
type wsConnStub struct {
	mu     sync.Mutex
	frames [][]byte
	writes [][]byte
	closed bool
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "read timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func (c *wsConnStub) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return 0, nil, timeoutErr{}
	}
	frame := c.frames[0]
	c.frames = c.frames[1:]
	return 1, frame, nil
}

func (c *wsConnStub) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *wsConnStub) SetReadDeadline(time.Time) error  { return nil }
func (c *wsConnStub) SetWriteDeadline(time.Time) error { return nil }
func (c *wsConnStub) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func newRealtimeForTest(cfg *config.Config) (*Client, *vectorSinkStub, *realtimeStatusStub) {
	fridges := &vectorSinkStub{}
	status := &realtimeStatusStub{}
	c := NewClient(cfg, fridges, status, logger.Get(logger.ErrorLevel))
	c.policy = backoff.Policy{Base: time.Millisecond, Max: 2 * time.Millisecond}
	return c, fridges, status
}

func realtimeConfig() *config.Config {
	return &config.Config{
		SupabaseURL:     "https://project.supabase.co",
		SupabaseAnonKey: "anon-key",
	}
}

func TestWebsocketURL(t *testing.T) {
	t.Parallel()

	c, _, _ := newRealtimeForTest(realtimeConfig())
	want := "wss://project.supabase.co/realtime/v1/websocket?apikey=anon-key&vsn=1.0.0"
	if got := c.websocketURL(); got != want {
		t.Fatalf("websocketURL() = %q, want %q", got, want)
	}

	c.cfg.SupabaseURL = "http://localhost:54321/"
	if got := c.websocketURL(); got != "ws://localhost:54321/realtime/v1/websocket?apikey=anon-key&vsn=1.0.0" {
		t.Fatalf("websocketURL() = %q", got)
	}
}

func TestRun_SkipsWithoutCredentials(t *testing.T) {
	t.Parallel()

	c, _, status := newRealtimeForTest(&config.Config{})
	dialed := false
	c.dial = func(context.Context, string) (wsConn, error) {
		dialed = true
		return nil, errors.New("must not dial")
	}

	c.Run(context.Background())

	if dialed {
		t.Fatalf("dialed without credentials")
	}
	if len(status.snapshot()) != 0 {
		t.Fatalf("connectivity touched without credentials")
	}
}

func TestHandleMessage_RoutesChanges(t *testing.T) {
	t.Parallel()

	c, fridges, _ := newRealtimeForTest(realtimeConfig())

	frame := []byte(`{
		"topic": "realtime:schema-db-changes",
		"event": "postgres_changes",
		"payload": {
			"data": {
				"type": "UPDATE",
				"commit_timestamp": "2025-03-10T18:30:00Z",
				"record": {"message": "[0,1,0,0,1,1]"}
			}
		},
		"ref": null
	}`)
	acked, err := c.handleMessage(frame)
	if err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	if acked {
		t.Fatalf("change frame misread as a join reply")
	}

	fridges.mu.Lock()
	defer fridges.mu.Unlock()
	if len(fridges.calls) != 1 {
		t.Fatalf("routed calls = %d, want 1", len(fridges.calls))
	}
	if fridges.calls[0].message != "[0,1,0,0,1,1]" || fridges.calls[0].timestamp != "2025-03-10T18:30:00Z" {
		t.Fatalf("routed %+v", fridges.calls[0])
	}
}

func TestHandleMessage_ToleratesNoise(t *testing.T) {
	t.Parallel()

	c, fridges, _ := newRealtimeForTest(realtimeConfig())
	// Sink failures must not kill the session either.
	fridges.err = errors.New("bad vector")

	frames := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"topic":"phoenix","event":"phx_reply","payload":{"status":"ok"},"ref":"2"}`),
		[]byte(`{"topic":"realtime:schema-db-changes","event":"postgres_changes","payload":{"data":{}},"ref":null}`),
		[]byte(`{"topic":"realtime:schema-db-changes","event":"postgres_changes","payload":{"data":{"commit_timestamp":"x","record":{"message":"[9]"}}},"ref":null}`),
	}
	for i, frame := range frames {
		if _, err := c.handleMessage(frame); err != nil {
			t.Fatalf("frame %d aborted session: %v", i, err)
		}
	}
}

func TestHandleMessage_ProtocolFailuresAbort(t *testing.T) {
	t.Parallel()

	c, _, _ := newRealtimeForTest(realtimeConfig())

	cases := []struct {
		name  string
		frame string
	}{
		{name: "join rejected", frame: `{"topic":"realtime:schema-db-changes","event":"phx_reply","payload":{"status":"error"},"ref":"1"}`},
		{name: "phx_error", frame: `{"topic":"realtime:schema-db-changes","event":"phx_error","payload":{},"ref":null}`},
		{name: "phx_close", frame: `{"topic":"realtime:schema-db-changes","event":"phx_close","payload":{},"ref":null}`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := c.handleMessage([]byte(tc.frame)); err == nil {
				t.Fatalf("protocol failure not surfaced")
			}
		})
	}
}

func TestSession_JoinsAndPumps(t *testing.T) {
	t.Parallel()

	conn := &wsConnStub{
		frames: [][]byte{
			[]byte(`{"topic":"realtime:schema-db-changes","event":"phx_reply","payload":{"status":"ok"},"ref":"1"}`),
			[]byte(`{"topic":"realtime:schema-db-changes","event":"postgres_changes","payload":{"data":{"commit_timestamp":"2025-03-10T18:30:00Z","record":{"message":"[1,0,0,0,0,0]"}}},"ref":null}`),
		},
	}
	c, fridges, status := newRealtimeForTest(realtimeConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		deadline := time.After(time.Second)
		for {
			fridges.mu.Lock()
			n := len(fridges.calls)
			fridges.mu.Unlock()
			if n > 0 {
				cancel()
				return
			}
			select {
			case <-deadline:
				cancel()
				return
			case <-time.After(2 * time.Millisecond):
			}
		}
	}()

	joined, err := c.session(ctx, conn)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if !joined {
		t.Fatalf("session did not report a successful join")
	}

	fridges.mu.Lock()
	routed := len(fridges.calls)
	fridges.mu.Unlock()
	if routed != 1 {
		t.Fatalf("routed calls = %d, want 1", routed)
	}

	// The first write is the join with the UPDATE/public filter.
	conn.mu.Lock()
	writes := append([][]byte(nil), conn.writes...)
	conn.mu.Unlock()
	if len(writes) == 0 {
		t.Fatalf("nothing written, want phx_join")
	}
	var join phoenixMessage
	if err := json.Unmarshal(writes[0], &join); err != nil {
		t.Fatalf("join frame unparseable: %v", err)
	}
	if join.Topic != channelTopic || join.Event != eventJoin || join.Ref != "1" {
		t.Fatalf("join frame = %+v", join)
	}
	var joinPayload struct {
		Config struct {
			PostgresChanges []map[string]string `json:"postgres_changes"`
		} `json:"config"`
	}
	if err := json.Unmarshal(join.Payload, &joinPayload); err != nil {
		t.Fatalf("join payload unparseable: %v", err)
	}
	if len(joinPayload.Config.PostgresChanges) != 1 {
		t.Fatalf("join payload = %s", join.Payload)
	}
	filter := joinPayload.Config.PostgresChanges[0]
	if filter["event"] != changeEvent || filter["schema"] != changeSchema {
		t.Fatalf("join filter = %v", filter)
	}

	hist := status.snapshot()
	if len(hist) == 0 || !hist[0] {
		t.Fatalf("connectivity not raised on join: %v", hist)
	}
}

func TestHandleMessage_OnlyJoinReplyAcks(t *testing.T) {
	t.Parallel()

	c, _, _ := newRealtimeForTest(realtimeConfig())

	acked, err := c.handleMessage([]byte(`{"topic":"realtime:schema-db-changes","event":"phx_reply","payload":{"status":"ok"},"ref":"1"}`))
	if err != nil {
		t.Fatalf("join reply: %v", err)
	}
	if !acked {
		t.Fatalf("join reply not recognized")
	}

	// A heartbeat reply carries a different ref and must not count.
	acked, err = c.handleMessage([]byte(`{"topic":"phoenix","event":"phx_reply","payload":{"status":"ok"},"ref":"2"}`))
	if err != nil {
		t.Fatalf("heartbeat reply: %v", err)
	}
	if acked {
		t.Fatalf("heartbeat reply misread as join ack")
	}
}

func TestSession_RejectedJoinIsNotASuccess(t *testing.T) {
	t.Parallel()

	conn := &wsConnStub{
		frames: [][]byte{
			[]byte(`{"topic":"realtime:schema-db-changes","event":"phx_reply","payload":{"status":"error"},"ref":"1"}`),
		},
	}
	c, _, status := newRealtimeForTest(realtimeConfig())

	joined, err := c.session(context.Background(), conn)
	if err == nil {
		t.Fatalf("rejected join did not end the session")
	}
	// joined=false keeps Run on the doubling delay track instead of
	// resetting to base after every rejected attempt.
	if joined {
		t.Fatalf("rejected join reported as a successful subscribe")
	}
	for _, up := range status.snapshot() {
		if up {
			t.Fatalf("connectivity raised without an acknowledged join")
		}
	}
}
