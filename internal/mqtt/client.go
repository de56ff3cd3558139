package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"monitoring_station/internal/backoff"
	"monitoring_station/internal/config"
	"monitoring_station/internal/logger"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// rpcRequestTopic carries server-side RPC alarm pushes for this device.
const rpcRequestTopic = "v1/devices/me/rpc/request/+"

const (
	subscribeQoS     = 1
	connectTimeout   = 10 * time.Second
	operationTimeout = 10 * time.Second
	keepAlive        = 30 * time.Second
	disconnectQuiet  = 250 // ms, paho's Disconnect grace
)

// Reconnect delays: 5s doubling to a 60s ceiling.
var reconnectPolicy = backoff.Policy{Base: 5 * time.Second, Max: 60 * time.Second}

// alarmSink consumes raw alarm RPC payloads.
type alarmSink interface {
	HandleAlarmPayload(payload []byte)
}

// statusSink receives feed up/down transitions.
type statusSink interface {
	SetMQTTConnected(up bool)
}

// Client maintains one subscription to the alarm RPC topic for the life
// of the process, reconnecting with capped exponential backoff. Paho's
// own auto-reconnect is disabled so the loop here is the single owner
// of session state and the connectivity flag.
type Client struct {
	cfg    *config.Config
	alerts alarmSink
	status statusSink
	log    *logger.Logger
	policy backoff.Policy

	newClient func(*paho.ClientOptions) paho.Client
}

func NewClient(cfg *config.Config, alerts alarmSink, status statusSink, log *logger.Logger) *Client {
	return &Client{
		cfg:       cfg,
		alerts:    alerts,
		status:    status,
		log:       log,
		policy:    reconnectPolicy,
		newClient: paho.NewClient,
	}
}

// Run blocks until ctx is cancelled, holding the subscription open and
// re-establishing it after every failure.
func (c *Client) Run(ctx context.Context) {
	delay := c.policy.Reset()
	for ctx.Err() == nil {
		lost := make(chan error, 1)
		client, err := c.connect(lost)
		if err != nil {
			c.status.SetMQTTConnected(false)
			c.log.Warnw("mqtt_connect_failed", "err", err, "retry_in", delay)
			if !backoff.Sleep(ctx, delay) {
				return
			}
			delay = c.policy.Next(delay)
			continue
		}

		c.status.SetMQTTConnected(true)
		c.log.Infow("mqtt_subscribed", "topic", rpcRequestTopic)
		delay = c.policy.Reset()

		select {
		case <-ctx.Done():
			client.Disconnect(disconnectQuiet)
			c.status.SetMQTTConnected(false)
			return
		case err := <-lost:
			client.Disconnect(disconnectQuiet)
			c.status.SetMQTTConnected(false)
			c.log.Warnw("mqtt_connection_lost", "err", err, "retry_in", delay)
			if !backoff.Sleep(ctx, delay) {
				return
			}
			delay = c.policy.Next(delay)
		}
	}
}

// connect dials the broker and subscribes. Any failure tears the
// session down so the caller retries from scratch.
func (c *Client) connect(lost chan<- error) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(c.brokerURL()).
		SetClientID(c.cfg.MQTTClientID).
		SetUsername(c.cfg.MQTTUsername).
		SetPassword(c.cfg.MQTTPassword).
		SetAutoReconnect(false).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			select {
			case lost <- err:
			default:
			}
		})

	if c.cfg.MQTTSecure {
		tlsCfg, err := tlsConfig(c.cfg.MQTTCAFile)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	client := c.newClient(opts)
	if err := wait(client.Connect()); err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.brokerURL(), err)
	}

	token := client.Subscribe(rpcRequestTopic, subscribeQoS, c.onMessage)
	if err := wait(token); err != nil {
		client.Disconnect(disconnectQuiet)
		return nil, fmt.Errorf("subscribe %s: %w", rpcRequestTopic, err)
	}
	return client, nil
}

func (c *Client) onMessage(_ paho.Client, msg paho.Message) {
	c.status.SetMQTTConnected(true)
	c.log.Debugw("mqtt_rpc_received", "topic", msg.Topic(), "bytes", len(msg.Payload()))
	c.alerts.HandleAlarmPayload(msg.Payload())
}

func (c *Client) brokerURL() string {
	scheme := "tcp"
	if c.cfg.MQTTSecure {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.cfg.MQTTServer, c.cfg.MQTTPort)
}

// tlsConfig builds a TLS config trusting only the broker's CA.
func tlsConfig(caFile string) (*tls.Config, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read ca certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("ca certificate %s: no usable PEM data", caFile)
	}
	return &tls.Config{RootCAs: pool}, nil
}

func wait(token paho.Token) error {
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("operation timed out after %v", operationTimeout)
	}
	return token.Error()
}
