package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/mqtt-connector/internal/infrastructure/config"
)

// Client drives a single paho connection on behalf of the connector.
//
// A Client is single-use: it is created for one connect attempt, and the
// connector replaces it rather than reconnecting it. Connection state
// changes are reported through Handlers, never tracked here.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client pahomqtt.Client

	handlers         Handlers
	connectTimeout   time.Duration
	operationTimeout time.Duration

	logger   Logger
	loggerMu sync.RWMutex

	closeOnce sync.Once
}

// Handlers receive asynchronous notifications from a Client.
// Any of them may be nil.
type Handlers struct {
	// OnConnected fires once the broker has acknowledged the connection.
	OnConnected func()

	// OnDisconnected fires when an established connection is lost.
	OnDisconnected func(err error)

	// OnMessage fires for every message on a subscribed topic.
	// It is invoked on paho's goroutines and should not block.
	OnMessage func(topic string, payload []byte)
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// NewClient builds a paho client for cfg without touching the network.
//
// TLS material is loaded here, so a bad CA, certificate or key path
// fails with ErrTLSConfiguration before any connection attempt.
func NewClient(cfg config.MQTTConfig, handlers Handlers) (*Client, error) {
	tlsConfig, err := BuildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		handlers:         handlers,
		connectTimeout:   ConnectTimeout(cfg),
		operationTimeout: OperationTimeout(cfg),
	}

	opts := buildClientOptions(cfg, tlsConfig)

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		if c.handlers.OnConnected != nil {
			c.handlers.OnConnected()
		}
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		if c.handlers.OnDisconnected != nil {
			c.handlers.OnDisconnected(err)
		}
	})

	c.client = pahomqtt.NewClient(opts)
	return c, nil
}

// Connect starts the connection and waits for the broker's answer.
//
// A nil return means the broker accepted the connection; OnConnected is
// delivered separately and may arrive before or after Connect returns.
func (c *Client) Connect(ctx context.Context) error {
	token := c.client.Connect()
	if err := waitToken(ctx, token, c.connectTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}

// Disconnect closes the connection, waiting briefly for in-flight work.
// Safe to call more than once and on a client that never connected.
func (c *Client) Disconnect() {
	c.closeOnce.Do(func() {
		c.client.Disconnect(defaultDisconnectQuiesce)
	})
}

// IsConnectionOpen reports whether paho currently holds an open connection.
func (c *Client) IsConnectionOpen() bool {
	return c.client.IsConnectionOpen()
}

// SetLogger sets a logger for handler errors and panics.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// waitToken blocks until token completes, ctx is done or timeout elapses.
func waitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
}
