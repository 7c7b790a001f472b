package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nerrad567/mqtt-connector/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-connector/internal/infrastructure/mqtt"
)

// Adapter is the protocol client the supervisor drives.
// *mqtt.Client is the production implementation.
type Adapter interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error
	Subscribe(ctx context.Context, topic string, qos byte) error
	Disconnect()
}

// AdapterFactory builds a fresh adapter for one connect attempt.
// It must not touch the network; configuration problems (unreadable TLS
// material) are returned as errors.
type AdapterFactory func(cfg config.MQTTConfig, handlers mqtt.Handlers) (Adapter, error)

// pahoAdapterFactory returns the factory used when none is configured.
func pahoAdapterFactory(logger Logger) AdapterFactory {
	return func(cfg config.MQTTConfig, handlers mqtt.Handlers) (Adapter, error) {
		client, err := mqtt.NewClient(cfg, handlers)
		if err != nil {
			return nil, err
		}
		client.SetLogger(logger)
		return client, nil
	}
}

// Subscription is one requested topic filter.
type Subscription struct {
	Topic string `json:"topic"`
	QoS   byte   `json:"qos"`
}

// subscriptionSet keeps subscriptions in first-request order, keyed by topic.
type subscriptionSet struct {
	order []Subscription
	index map[string]int
}

// add records topic, updating qos in place if it is already present.
func (s *subscriptionSet) add(topic string, qos byte) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[topic]; ok {
		s.order[i].QoS = qos
		return
	}
	s.index[topic] = len(s.order)
	s.order = append(s.order, Subscription{Topic: topic, QoS: qos})
}

func (s *subscriptionSet) snapshot() []Subscription {
	out := make([]Subscription, len(s.order))
	copy(out, s.order)
	return out
}

// supervisor owns the connection state machine.
//
// Every connect attempt and every Disconnect increments epoch. Adapter
// notifications and reconnect timers carry the epoch they were created
// under and are discarded when it no longer matches.
type supervisor struct {
	cfg         config.MQTTConfig
	broker      string
	factory     AdapterFactory
	events      *emitter
	logger      Logger
	interval    time.Duration
	maxAttempts int

	mu          sync.Mutex
	state       State
	changed     chan struct{} // closed and replaced on every state change
	attempts    int
	epoch       uint64
	adapter     Adapter
	timer       *time.Timer
	subs        subscriptionSet
	lastErr     error
	connectedAt time.Time

	cbMu         sync.RWMutex
	onConnect    func()
	onDisconnect func(err error)
	onMessage    func(topic string, payload []byte)
}

func newSupervisor(cfg config.MQTTConfig, factory AdapterFactory, events *emitter, logger Logger) *supervisor {
	return &supervisor{
		cfg:         cfg,
		broker:      mqtt.BrokerURL(cfg),
		factory:     factory,
		events:      events,
		logger:      logger,
		interval:    cfg.GetReconnectInterval(),
		maxAttempts: cfg.Reconnect.MaxAttempts,
		state:       StateDisconnected,
		changed:     make(chan struct{}),
	}
}

// setStateLocked must be called with s.mu held.
func (s *supervisor) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	close(s.changed)
	s.changed = make(chan struct{})
}

// connect starts a new connection attempt unless one is already established.
func (s *supervisor) connect(ctx context.Context, force bool) bool {
	s.mu.Lock()
	switch {
	case s.state == StateConnected && !force:
		s.mu.Unlock()
		return true
	case s.state == StateExhausted && !force:
		attempts := s.attempts
		s.mu.Unlock()
		s.events.emit(slog.LevelWarn, EventConnectFailed, "retries exhausted, force reconnect required",
			"broker", s.broker,
			"attempts", attempts,
		)
		return false
	}

	s.epoch++
	epoch := s.epoch
	s.stopTimerLocked()
	old := s.adapter
	s.adapter = nil
	s.attempts = 0
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	if old != nil {
		old.Disconnect()
	}
	return s.dial(ctx, epoch)
}

// dial builds an adapter for epoch and issues its connect.
func (s *supervisor) dial(ctx context.Context, epoch uint64) bool {
	s.events.emit(slog.LevelInfo, EventConnectAttempt, s.broker,
		"broker", s.broker,
		"client_id", s.cfg.Broker.ClientID,
		"epoch", epoch,
	)

	adapter, err := s.factory(s.cfg, s.handlers(epoch))
	if err != nil {
		s.mu.Lock()
		if s.epoch == epoch {
			s.lastErr = err
			s.setStateLocked(StateDisconnected)
		}
		s.mu.Unlock()
		s.events.emit(slog.LevelError, EventConnectFailed, err.Error(),
			"broker", s.broker,
			"error", err,
		)
		return false
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		adapter.Disconnect()
		return false
	}
	s.adapter = adapter
	s.mu.Unlock()

	if err := adapter.Connect(ctx); err != nil {
		s.connectionLost(epoch, fmt.Errorf("%w: %w", ErrConnectionRefused, err))
		return false
	}
	return true
}

func (s *supervisor) handlers(epoch uint64) mqtt.Handlers {
	return mqtt.Handlers{
		OnConnected:    func() { s.handleConnected(epoch) },
		OnDisconnected: func(err error) { s.connectionLost(epoch, err) },
		OnMessage:      s.deliver,
	}
}

// handleConnected moves a connecting epoch to connected and replays
// subscriptions in request order.
func (s *supervisor) handleConnected(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch || s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.attempts = 0
	s.lastErr = nil
	s.connectedAt = time.Now()
	s.setStateLocked(StateConnected)
	adapter := s.adapter
	subs := s.subs.snapshot()
	s.mu.Unlock()

	s.events.emit(slog.LevelInfo, EventConnected, s.broker,
		"broker", s.broker,
		"subscriptions", len(subs),
	)

	for _, sub := range subs {
		if !s.current(epoch) {
			return
		}
		if err := adapter.Subscribe(context.Background(), sub.Topic, sub.QoS); err != nil {
			s.events.emit(slog.LevelWarn, EventSubscribeFailed, fmt.Sprintf("%s: %v", sub.Topic, err),
				"topic", sub.Topic,
				"qos", sub.QoS,
				"error", err,
			)
		}
	}

	if cb := s.connectCallback(); cb != nil {
		cb()
	}
}

// connectionLost applies the reconnect policy to a failed attempt or a lost
// connection.
func (s *supervisor) connectionLost(epoch uint64, err error) {
	s.mu.Lock()
	if s.epoch != epoch || (s.state != StateConnecting && s.state != StateConnected) {
		s.mu.Unlock()
		return
	}
	wasConnected := s.state == StateConnected
	s.lastErr = err

	if s.maxAttempts >= 0 && s.attempts >= s.maxAttempts {
		attempts := s.attempts
		s.epoch++
		adapter := s.adapter
		s.adapter = nil
		s.setStateLocked(StateExhausted)
		s.mu.Unlock()

		if adapter != nil {
			adapter.Disconnect()
		}
		s.events.emit(slog.LevelWarn, EventDisconnected, reason(err), "broker", s.broker, "error", err)
		s.events.emit(slog.LevelError, EventRetriesExhausted, fmt.Sprintf("%d attempts", attempts),
			"broker", s.broker,
			"attempts", attempts,
		)
		if wasConnected {
			s.notifyDisconnect(err)
		}
		return
	}

	s.attempts++
	attempt := s.attempts
	s.setStateLocked(StateReconnecting)
	s.timer = time.AfterFunc(s.interval, func() { s.retry(epoch) })
	s.mu.Unlock()

	s.events.emit(slog.LevelWarn, EventDisconnected, reason(err), "broker", s.broker, "error", err)
	s.events.emit(slog.LevelInfo, EventReconnectScheduled, fmt.Sprintf("attempt %d, delay %s", attempt, s.interval),
		"attempt", attempt,
		"max_attempts", s.maxAttempts,
		"delay", s.interval,
	)
	if wasConnected {
		s.notifyDisconnect(err)
	}
}

// retry runs when a reconnect timer for epoch fires.
func (s *supervisor) retry(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch || s.state != StateReconnecting {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.epoch++
	next := s.epoch
	old := s.adapter
	s.adapter = nil
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	if old != nil {
		old.Disconnect()
	}
	s.dial(context.Background(), next)
}

// disconnect tears everything down. Safe to call from any state.
func (s *supervisor) disconnect() {
	s.mu.Lock()
	s.epoch++
	s.stopTimerLocked()
	adapter := s.adapter
	s.adapter = nil
	prev := s.state
	s.attempts = 0
	s.setStateLocked(StateDisconnected)
	s.mu.Unlock()

	if adapter != nil {
		adapter.Disconnect()
	}
	if prev == StateDisconnected {
		return
	}
	s.events.emit(slog.LevelInfo, EventDisconnected, "requested", "broker", s.broker, "previous_state", prev)
	if prev == StateConnected {
		s.notifyDisconnect(nil)
	}
}

func (s *supervisor) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *supervisor) current(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch
}

// addSubscription records topic and returns the adapter to issue it on when
// connected, or nil when it has to wait for the next connect.
func (s *supervisor) addSubscription(topic string, qos byte) Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.add(topic, qos)
	if s.state != StateConnected {
		return nil
	}
	return s.adapter
}

// connectedAdapter returns the live adapter, or nil when not connected.
func (s *supervisor) connectedAdapter() Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return nil
	}
	return s.adapter
}

// waitConnected blocks until the state is connected, the attempt is given
// up, or ctx is done. Reconnecting counts as still trying.
func (s *supervisor) waitConnected(ctx context.Context) error {
	for {
		s.mu.Lock()
		state, changed, lastErr := s.state, s.changed, s.lastErr
		s.mu.Unlock()

		switch state {
		case StateConnected:
			return nil
		case StateExhausted:
			return errors.Join(ErrRetriesExhausted, lastErr)
		case StateDisconnected:
			if lastErr != nil {
				return fmt.Errorf("%w: %w", ErrNotConnected, lastErr)
			}
			return ErrNotConnected
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

func (s *supervisor) deliver(topic string, payload []byte) {
	s.cbMu.RLock()
	cb := s.onMessage
	s.cbMu.RUnlock()

	s.logger.Debug("message received", "topic", topic, "bytes", len(payload))
	if cb != nil {
		cb(topic, payload)
	}
}

func (s *supervisor) connectCallback() func() {
	s.cbMu.RLock()
	defer s.cbMu.RUnlock()
	return s.onConnect
}

func (s *supervisor) notifyDisconnect(err error) {
	s.cbMu.RLock()
	cb := s.onDisconnect
	s.cbMu.RUnlock()
	if cb != nil {
		cb(err)
	}
}

func reason(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
