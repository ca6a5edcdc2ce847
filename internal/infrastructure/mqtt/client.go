package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeaderSteve84/habitatT-backend/internal/infrastructure/config"
)

var (
	ErrNotConnected     = errors.New("mqtt: not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrInvalidQoS       = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrInvalidTopic     = errors.New("mqtt: empty topic")
)

// Client is an outbound-only MQTT connection. It publishes notifications
// and a retained status but never subscribes. Safe for concurrent use; a
// zero Client reports itself disconnected.
type Client struct {
	conn      pahomqtt.Client
	clientID  string
	qos       byte
	connected atomic.Bool
	closed    atomic.Bool

	mu           sync.RWMutex
	onConnect    func()
	onDisconnect func(err error)
}

// Connect dials the broker and waits until the session is up, ctx is done
// or 10 seconds pass.
func Connect(ctx context.Context, cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		clientID: cfg.Broker.ClientID,
		qos:      byte(cfg.QoS), // #nosec G115 -- validated 0..2 by config
	}

	opts := newClientOptions(cfg).
		SetOnConnectHandler(func(pahomqtt.Client) { c.connectionUp() }).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.connectionDown(err) })
	c.conn = pahomqtt.NewClient(opts)

	if err := wait(ctx, c.conn.Connect(), connectTimeout); err != nil {
		c.conn.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	c.connected.Store(true)
	return c, nil
}

// wait blocks until token completes, ctx is done or timeout passes.
func wait(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timeout after %v", timeout)
	}
}

func (c *Client) connectionUp() {
	if c.closed.Load() {
		return
	}
	c.connected.Store(true)
	c.conn.Publish(Topics{}.SystemStatus(), statusQoS, true, statusPayload("online", c.clientID, ""))

	c.mu.RLock()
	cb := c.onConnect
	c.mu.RUnlock()
	if cb != nil {
		cb()
	}
}

func (c *Client) connectionDown(err error) {
	c.connected.Store(false)

	c.mu.RLock()
	cb := c.onDisconnect
	c.mu.RUnlock()
	if cb != nil {
		cb(err)
	}
}

// SetOnConnect registers a callback for every (re)connect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback for a lost connection.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// IsConnected reports whether the session is currently up.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.conn != nil && c.conn.IsConnected()
}

// HealthCheck fails when ctx is done or the session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close replaces the retained status with a graceful offline message and
// disconnects. Closing a zero or closed Client is a no-op.
func (c *Client) Close() error {
	if c.conn == nil || c.closed.Swap(true) {
		return nil
	}
	if c.connected.Swap(false) && c.conn.IsConnected() {
		token := c.conn.Publish(Topics{}.SystemStatus(), statusQoS, true, statusPayload("offline", c.clientID, reasonShutdown))
		token.WaitTimeout(publishTimeout)
	}
	// Disconnect also stops a pending auto-reconnect.
	c.conn.Disconnect(quiesceMillis)
	return nil
}
