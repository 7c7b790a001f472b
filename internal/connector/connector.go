package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/mqtt-connector/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-connector/internal/infrastructure/mqtt"
)

// clientIDPrefix starts every generated client identifier.
const clientIDPrefix = "mqtt-connector-"

// Connector is a managed MQTT connection with automatic reconnection,
// publish throttling and subscription replay.
type Connector struct {
	cfg    config.MQTTConfig
	logger Logger
	events *emitter
	sup    *supervisor
	gate   *throttle
}

// Option configures a Connector.
type Option func(*options)

type options struct {
	logger  Logger
	factory AdapterFactory
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAdapterFactory replaces the paho-backed protocol client.
func WithAdapterFactory(factory AdapterFactory) Option {
	return func(o *options) {
		o.factory = factory
	}
}

// New validates cfg and builds a disconnected Connector. No network
// activity happens until Connect.
//
// An empty client ID is replaced with a generated one.
func New(cfg config.MQTTConfig, opts ...Option) (*Connector, error) {
	if cfg.Broker.ClientID == "" {
		cfg.Broker.ClientID = GenerateClientID()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	o := options{logger: noopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.factory == nil {
		o.factory = pahoAdapterFactory(o.logger)
	}

	events := newEmitter(o.logger)
	return &Connector{
		cfg:    cfg,
		logger: o.logger,
		events: events,
		sup:    newSupervisor(cfg, o.factory, events, o.logger),
		gate:   newThrottle(cfg.GetThrottleInterval(), events),
	}, nil
}

// GenerateClientID returns a random client identifier such as
// "mqtt-connector-1b4e28ba".
func GenerateClientID() string {
	return clientIDPrefix + uuid.NewString()[:8]
}

// ClientID returns the identifier presented to the broker.
func (c *Connector) ClientID() string {
	return c.cfg.Broker.ClientID
}

// Connect starts connecting to the broker.
//
// It returns true immediately when already connected and force is false.
// Otherwise any existing connection is torn down and a new one is started;
// true means the broker accepted it. The connected notification may still
// be in flight, so use WaitConnected or SetOnConnect to observe completion.
//
// False is returned for invalid TLS material (no retry is scheduled), for a
// refused connect (the reconnect policy takes over), and when retries are
// exhausted and force is false.
func (c *Connector) Connect(ctx context.Context, force bool) bool {
	return c.sup.connect(ctx, force)
}

// Disconnect cancels any pending reconnect and closes the connection.
// Safe to call from any state, any number of times.
func (c *Connector) Disconnect() {
	c.sup.disconnect()
}

// WaitConnected blocks until the connector is connected. It returns
// ErrRetriesExhausted or ErrNotConnected when the connector gives up or is
// disconnected, and ctx.Err() when ctx ends first.
func (c *Connector) WaitConnected(ctx context.Context) error {
	return c.sup.waitConnected(ctx)
}

// Publish sends message to topic through the throttle gate.
//
// message may be []byte, string or json.RawMessage (sent as-is) or any
// value encoding/json accepts. Publish fails fast with ErrNotConnected when
// not connected; in that case the throttle is not touched.
func (c *Connector) Publish(ctx context.Context, topic string, message any, qos byte, retain bool) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	payload, err := EncodePayload(message)
	if err != nil {
		return err
	}
	if err := mqtt.ValidatePublish(topic, payload, qos); err != nil {
		return err
	}

	return c.gate.Do(ctx, func(ctx context.Context) error {
		adapter := c.sup.connectedAdapter()
		if adapter == nil {
			return ErrNotConnected
		}
		if err := adapter.Publish(ctx, topic, payload, qos, retain); err != nil {
			c.events.emit(slog.LevelWarn, EventPublishFailed, fmt.Sprintf("%s: %v", topic, err),
				"topic", topic,
				"qos", qos,
				"error", err,
			)
			return err
		}
		return nil
	})
}

// Subscribe records topic for replay after every connect and, when
// connected, subscribes immediately. While not connected it returns nil
// and the subscription is issued on the next successful connect.
//
// A failed immediate subscribe is returned but the topic stays recorded.
func (c *Connector) Subscribe(ctx context.Context, topic string, qos byte) error {
	if err := mqtt.ValidateTopicFilter(topic); err != nil {
		return err
	}
	if err := mqtt.ValidateQoS(qos); err != nil {
		return err
	}

	adapter := c.sup.addSubscription(topic, qos)
	if adapter == nil {
		c.logger.Debug("subscription deferred until connected", "topic", topic, "qos", qos)
		return nil
	}

	if err := adapter.Subscribe(ctx, topic, qos); err != nil {
		c.events.emit(slog.LevelWarn, EventSubscribeFailed, fmt.Sprintf("%s: %v", topic, err),
			"topic", topic,
			"qos", qos,
			"error", err,
		)
		return err
	}
	return nil
}

// IsConnected reports whether the state is StateConnected.
func (c *Connector) IsConnected() bool {
	return c.State() == StateConnected
}

// State returns the current connection state.
func (c *Connector) State() State {
	c.sup.mu.Lock()
	defer c.sup.mu.Unlock()
	return c.sup.state
}

// Subscriptions returns the recorded subscriptions in replay order.
func (c *Connector) Subscriptions() []Subscription {
	c.sup.mu.Lock()
	defer c.sup.mu.Unlock()
	return c.sup.subs.snapshot()
}

// SetLogCallback installs the event sink. At most one is active; a later
// call replaces it and nil removes it.
func (c *Connector) SetLogCallback(cb LogCallback) {
	c.events.setSink(cb)
}

// SetOnMessage sets the handler for messages on subscribed topics.
// It runs on the protocol client's goroutines and should not block.
func (c *Connector) SetOnMessage(fn func(topic string, payload []byte)) {
	c.sup.cbMu.Lock()
	c.sup.onMessage = fn
	c.sup.cbMu.Unlock()
}

// SetOnConnect sets a callback run after each successful connect, once
// subscriptions have been replayed.
func (c *Connector) SetOnConnect(fn func()) {
	c.sup.cbMu.Lock()
	c.sup.onConnect = fn
	c.sup.cbMu.Unlock()
}

// SetOnDisconnect sets a callback run when an established connection ends.
// err is nil for a requested Disconnect.
func (c *Connector) SetOnDisconnect(fn func(err error)) {
	c.sup.cbMu.Lock()
	c.sup.onDisconnect = fn
	c.sup.cbMu.Unlock()
}

// Session connects, waits for the connection, runs fn and disconnects.
//
// Disconnect runs on every exit path, including a panic in fn. When the
// connection cannot be established fn is not run and the error wraps
// ErrConnectionRefused.
func (c *Connector) Session(ctx context.Context, fn func(ctx context.Context) error) error {
	defer c.Disconnect()

	if !c.Connect(ctx, false) {
		return c.refused(nil)
	}
	if err := c.WaitConnected(ctx); err != nil {
		return c.refused(err)
	}
	return fn(ctx)
}

func (c *Connector) refused(err error) error {
	if err == nil {
		c.sup.mu.Lock()
		err = c.sup.lastErr
		c.sup.mu.Unlock()
	}
	switch {
	case err == nil:
		return ErrConnectionRefused
	case errors.Is(err, ErrConnectionRefused):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrConnectionRefused, err)
	}
}

// Stats is a snapshot of connector state.
type Stats struct {
	ClientID          string         `json:"client_id"`
	Broker            string         `json:"broker"`
	State             State          `json:"state"`
	ReconnectAttempts int            `json:"reconnect_attempts"`
	MaxAttempts       int            `json:"max_reconnect_attempts"`
	Epoch             uint64         `json:"epoch"`
	Subscriptions     []Subscription `json:"subscriptions"`
	Uptime            time.Duration  `json:"uptime,omitempty"`
	LastPublish       *time.Time     `json:"last_publish,omitempty"`
	LastError         string         `json:"last_error,omitempty"`
}

// Stats returns current statistics for the connector.
func (c *Connector) Stats() Stats {
	c.sup.mu.Lock()
	stats := Stats{
		ClientID:          c.cfg.Broker.ClientID,
		Broker:            c.sup.broker,
		State:             c.sup.state,
		ReconnectAttempts: c.sup.attempts,
		MaxAttempts:       c.sup.maxAttempts,
		Epoch:             c.sup.epoch,
		Subscriptions:     c.sup.subs.snapshot(),
	}
	if c.sup.state == StateConnected {
		stats.Uptime = time.Since(c.sup.connectedAt)
	}
	if c.sup.lastErr != nil {
		stats.LastError = c.sup.lastErr.Error()
	}
	c.sup.mu.Unlock()

	if last := c.gate.lastCompleted(); !last.IsZero() {
		stats.LastPublish = &last
	}
	return stats
}
