package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"monitoring_station/internal/backoff"
	"monitoring_station/internal/config"
	"monitoring_station/internal/logger"

	"github.com/gorilla/websocket"
)

// Channel parameters for the device-status feed.
const (
	channelTopic  = "realtime:schema-db-changes"
	changeEvent   = "UPDATE"
	changeSchema  = "public"
	controlTopic  = "phoenix"
	protocolVsn   = "1.0.0"
	websocketPath = "/realtime/v1/websocket"
)

// Phoenix channel events.
const (
	eventJoin            = "phx_join"
	eventReply           = "phx_reply"
	eventError           = "phx_error"
	eventClose           = "phx_close"
	eventHeartbeat       = "heartbeat"
	eventPostgresChanges = "postgres_changes"
)

// joinRef identifies the join frame; the server's matching reply
// confirms the subscription.
const joinRef = "1"

const (
	writeWait         = 10 * time.Second
	readPollInterval  = 2 * time.Second
	heartbeatInterval = 25 * time.Second
)

var reconnectPolicy = backoff.Policy{Base: 5 * time.Second, Max: 60 * time.Second}

// vectorSink consumes decoded status-vector rows.
type vectorSink interface {
	HandleStatusVector(message, commitTimestamp string) error
}

// statusSink receives feed up/down transitions.
type statusSink interface {
	SetRealtimeConnected(up bool)
}

// wsConn is the slice of *websocket.Conn the session loop uses.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// phoenixMessage is the channel protocol envelope, both directions.
type phoenixMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

// changePayload carries one database change notification. Only UPDATE
// rows on the status table matter here; the record's message column
// holds the refrigerator vector.
type changePayload struct {
	Data struct {
		Type            string `json:"type"`
		CommitTimestamp string `json:"commit_timestamp"`
		Record          struct {
			Message string `json:"message"`
		} `json:"record"`
	} `json:"data"`
}

type replyPayload struct {
	Status string `json:"status"`
}

// Client subscribes to database UPDATE events over the realtime
// websocket and feeds decoded status vectors to the refrigerator
// service. Like the MQTT side, it owns its reconnection entirely:
// capped exponential backoff, connectivity flag raised only while a
// joined channel is live.
type Client struct {
	cfg     *config.Config
	fridges vectorSink
	status  statusSink
	log     *logger.Logger
	policy  backoff.Policy

	dial func(ctx context.Context, url string) (wsConn, error)
}

func NewClient(cfg *config.Config, fridges vectorSink, status statusSink, log *logger.Logger) *Client {
	return &Client{
		cfg:     cfg,
		fridges: fridges,
		status:  status,
		log:     log,
		policy:  reconnectPolicy,
		dial:    dialWebsocket,
	}
}

func dialWebsocket(ctx context.Context, url string) (wsConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	return conn, err
}

// Run blocks until ctx is cancelled. Without realtime credentials the
// loop never starts; the rest of the station works fine without it.
func (c *Client) Run(ctx context.Context) {
	if !c.cfg.RealtimeConfigured() {
		c.log.Infow("realtime_disabled_missing_config")
		return
	}

	delay := c.policy.Reset()
	for ctx.Err() == nil {
		conn, err := c.dial(ctx, c.websocketURL())
		if err != nil {
			c.status.SetRealtimeConnected(false)
			c.log.Warnw("realtime_dial_failed", "err", err, "retry_in", delay)
			if !backoff.Sleep(ctx, delay) {
				return
			}
			delay = c.policy.Next(delay)
			continue
		}

		joined, err := c.session(ctx, conn)
		conn.Close()
		c.status.SetRealtimeConnected(false)
		if ctx.Err() != nil {
			return
		}
		if joined {
			delay = c.policy.Reset()
		}

		c.log.Warnw("realtime_session_ended", "err", err, "retry_in", delay)
		if !backoff.Sleep(ctx, delay) {
			return
		}
		delay = c.policy.Next(delay)
	}
}

// session joins the channel and pumps messages until the connection
// breaks or ctx is cancelled. A nil error only happens on shutdown;
// joined turns true only once the server acknowledges the join, and
// tells the caller whether the backoff delay may reset.
func (c *Client) session(ctx context.Context, conn wsConn) (joined bool, err error) {
	if err := c.join(conn); err != nil {
		return false, err
	}

	ref := 2 // ref 1 was the join
	nextHeartbeat := time.Now().Add(heartbeatInterval)

	for {
		if ctx.Err() != nil {
			return joined, nil
		}
		if time.Now().After(nextHeartbeat) {
			if err := c.heartbeat(conn, ref); err != nil {
				return joined, fmt.Errorf("heartbeat: %w", err)
			}
			ref++
			nextHeartbeat = time.Now().Add(heartbeatInterval)
		}

		if err := conn.SetReadDeadline(time.Now().Add(readPollInterval)); err != nil {
			return joined, err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			// A read timeout is just the poll interval elapsing; it
			// lets the loop notice shutdown and due heartbeats.
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return joined, err
		}

		acked, err := c.handleMessage(data)
		if err != nil {
			return joined, err
		}
		if acked && !joined {
			joined = true
			c.status.SetRealtimeConnected(true)
			c.log.Infow("realtime_channel_joined", "topic", channelTopic)
		}
	}
}

func (c *Client) join(conn wsConn) error {
	payload, err := json.Marshal(map[string]any{
		"config": map[string]any{
			"postgres_changes": []map[string]string{
				{"event": changeEvent, "schema": changeSchema},
			},
		},
	})
	if err != nil {
		return err
	}
	return c.send(conn, phoenixMessage{
		Topic:   channelTopic,
		Event:   eventJoin,
		Payload: payload,
		Ref:     joinRef,
	})
}

func (c *Client) heartbeat(conn wsConn, ref int) error {
	return c.send(conn, phoenixMessage{
		Topic:   controlTopic,
		Event:   eventHeartbeat,
		Payload: json.RawMessage("{}"),
		Ref:     strconv.Itoa(ref),
	})
}

func (c *Client) send(conn wsConn, msg phoenixMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// handleMessage dispatches one inbound frame. Change rows that fail to
// decode are logged and skipped; only protocol-level failures abort the
// session. joinAcked reports whether this frame was the server's "ok"
// reply to the join.
func (c *Client) handleMessage(data []byte) (joinAcked bool, err error) {
	var msg phoenixMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Warnw("realtime_frame_unparseable", "err", err)
		return false, nil
	}

	switch msg.Event {
	case eventPostgresChanges:
		c.handleChange(msg.Payload)
	case eventReply:
		var reply replyPayload
		if err := json.Unmarshal(msg.Payload, &reply); err == nil && reply.Status == "error" {
			return false, fmt.Errorf("channel rejected %s", msg.Topic)
		}
		if msg.Ref == joinRef {
			return true, nil
		}
	case eventError, eventClose:
		return false, fmt.Errorf("channel %s sent %s", msg.Topic, msg.Event)
	}
	return false, nil
}

func (c *Client) handleChange(payload json.RawMessage) {
	var change changePayload
	if err := json.Unmarshal(payload, &change); err != nil {
		c.log.Warnw("realtime_change_unparseable", "err", err)
		return
	}
	if change.Data.Record.Message == "" {
		c.log.Debugw("realtime_change_without_message")
		return
	}
	if err := c.fridges.HandleStatusVector(change.Data.Record.Message, change.Data.CommitTimestamp); err != nil {
		c.log.Warnw("status_vector_rejected", "err", err)
	}
}

// websocketURL derives the realtime endpoint from the project URL.
func (c *Client) websocketURL() string {
	base := strings.TrimSuffix(c.cfg.SupabaseURL, "/")
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return fmt.Sprintf("%s%s?apikey=%s&vsn=%s", base, websocketPath, c.cfg.SupabaseAnonKey, protocolVsn)
}
