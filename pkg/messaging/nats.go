package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

// Client wraps NATS connection with additional functionality
type Client struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	stream string

	mu   sync.Mutex
	subs map[string]*nats.Subscription

	reconnects atomic.Int64
	connected  atomic.Bool
}

// Config holds NATS configuration
type Config struct {
	URL            string
	Name           string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
	// Stream, when set, publishes through JetStream into a stream of that
	// name covering every event subject.
	Stream string
}

// NewClient creates a new NATS client
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = 60
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	client := &Client{
		subs:   make(map[string]*nats.Subscription),
		stream: cfg.Stream,
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectHandler(func(*nats.Conn) {
			client.reconnects.Add(1)
			client.connected.Store(true)
		}),
		nats.DisconnectErrHandler(func(*nats.Conn, error) {
			client.connected.Store(false)
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	client.conn = conn
	client.connected.Store(true)

	if cfg.Stream != "" {
		js, err := conn.JetStream()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
		client.js = js
	}

	return client, nil
}

// Subjects returns every event subject this service publishes.
func Subjects() []string {
	return []string{
		EventTypeComplianceComputed,
		EventTypeSurplusBanked,
		EventTypeBankedApplied,
		EventTypePoolCreated,
		EventTypeBaselineChanged,
	}
}

// EnsureStream creates the JetStream stream for the event subjects if it
// is missing. It is a no-op without a configured stream.
func (c *Client) EnsureStream() error {
	if c.js == nil {
		return nil
	}
	if _, err := c.js.StreamInfo(c.stream); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", c.stream, err)
	}
	if _, err := c.js.AddStream(&nats.StreamConfig{
		Name:     c.stream,
		Subjects: Subjects(),
		Storage:  nats.FileStorage,
	}); err != nil {
		return fmt.Errorf("failed to create stream %s: %w", c.stream, err)
	}
	return nil
}

// Publish marshals data as JSON and publishes it to subject.
func (c *Client) Publish(ctx context.Context, subject string, data interface{}) error {
	if c.conn == nil || c.conn.IsClosed() {
		return errors.New("nats: not connected")
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	if c.js != nil {
		if _, err := c.js.Publish(subject, payload, nats.Context(ctx)); err != nil {
			return fmt.Errorf("failed to publish %s: %w", subject, err)
		}
		return nil
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe subscribes to a subject
func (c *Client) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.subs[subject]; exists {
		return fmt.Errorf("already subscribed to %s", subject)
	}

	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	c.subs[subject] = sub
	return nil
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.conn != nil && c.conn.IsConnected()
}

// Reconnects returns number of reconnections
func (c *Client) Reconnects() int64 {
	return c.reconnects.Load()
}

// Close drains subscriptions and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		_ = sub.Unsubscribe()
		delete(c.subs, subject)
	}

	var err error
	if c.conn != nil && !c.conn.IsClosed() {
		err = c.conn.Drain()
	}
	c.connected.Store(false)
	return err
}
