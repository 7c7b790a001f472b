package connector

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/mqtt-connector/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-connector/internal/infrastructure/mqtt"
)

// testInterval is the reconnect interval used by supervisor tests.
const testInterval = 20 * time.Millisecond

var errFakeRefused = errors.New("fake: connection refused")

type publishRecord struct {
	topic   string
	payload []byte
	qos     byte
	retain  bool
	at      time.Time
}

// fakeBroker hands out fakeAdapters and records everything they do.
type fakeBroker struct {
	mu            sync.Mutex
	refuse        bool
	deferAck      bool // Connect returns nil and OnConnected waits for ack()
	factoryErr    error
	failSubscribe map[string]bool
	failPublish   error
	adapters      []*fakeAdapter
	connects      []time.Time
	subscribes    []Subscription
	publishes     []publishRecord
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{failSubscribe: make(map[string]bool)}
}

func (b *fakeBroker) factory(_ config.MQTTConfig, h mqtt.Handlers) (Adapter, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.factoryErr != nil {
		return nil, b.factoryErr
	}
	a := &fakeAdapter{broker: b, handlers: h}
	b.adapters = append(b.adapters, a)
	return a, nil
}

func (b *fakeBroker) setRefuse(refuse bool) {
	b.mu.Lock()
	b.refuse = refuse
	b.mu.Unlock()
}

// setDeferAck makes later connects return without acknowledging, the way
// paho reports the connected transition from its own goroutine.
func (b *fakeBroker) setDeferAck(deferAck bool) {
	b.mu.Lock()
	b.deferAck = deferAck
	b.mu.Unlock()
}

func (b *fakeBroker) connectCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.connects)
}

func (b *fakeBroker) connectTimes() []time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]time.Time(nil), b.connects...)
}

func (b *fakeBroker) subscribeCalls() []Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Subscription(nil), b.subscribes...)
}

func (b *fakeBroker) publishCalls() []publishRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]publishRecord(nil), b.publishes...)
}

func (b *fakeBroker) adapter(i int) *fakeAdapter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.adapters[i]
}

func (b *fakeBroker) latest() *fakeAdapter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.adapters[len(b.adapters)-1]
}

func (b *fakeBroker) adapterCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.adapters)
}

// fakeAdapter acknowledges connects synchronously unless its broker refuses
// or defers acknowledgements.
type fakeAdapter struct {
	broker   *fakeBroker
	handlers mqtt.Handlers

	mu           sync.Mutex
	disconnected bool
}

func (a *fakeAdapter) Connect(_ context.Context) error {
	a.broker.mu.Lock()
	a.broker.connects = append(a.broker.connects, time.Now())
	refuse, deferAck := a.broker.refuse, a.broker.deferAck
	a.broker.mu.Unlock()

	if refuse {
		return errFakeRefused
	}
	if deferAck {
		return nil
	}
	if a.handlers.OnConnected != nil {
		a.handlers.OnConnected()
	}
	return nil
}

func (a *fakeAdapter) Publish(_ context.Context, topic string, payload []byte, qos byte, retain bool) error {
	a.broker.mu.Lock()
	defer a.broker.mu.Unlock()
	if a.broker.failPublish != nil {
		return a.broker.failPublish
	}
	a.broker.publishes = append(a.broker.publishes, publishRecord{
		topic: topic, payload: payload, qos: qos, retain: retain, at: time.Now(),
	})
	return nil
}

func (a *fakeAdapter) Subscribe(_ context.Context, topic string, qos byte) error {
	a.broker.mu.Lock()
	defer a.broker.mu.Unlock()
	a.broker.subscribes = append(a.broker.subscribes, Subscription{Topic: topic, QoS: qos})
	if a.broker.failSubscribe[topic] {
		return errors.New("fake: subscribe rejected")
	}
	return nil
}

func (a *fakeAdapter) Disconnect() {
	a.mu.Lock()
	a.disconnected = true
	a.mu.Unlock()
}

func (a *fakeAdapter) isDisconnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disconnected
}

// ack delivers a deferred connected notification.
func (a *fakeAdapter) ack() {
	a.handlers.OnConnected()
}

// drop simulates a broker-initiated disconnect.
func (a *fakeAdapter) drop() {
	a.handlers.OnDisconnected(errors.New("fake: connection lost"))
}

// sinkRecorder collects events passed to the log callback.
type sinkRecorder struct {
	mu       sync.Mutex
	messages []string
	levels   []slog.Level
}

func (r *sinkRecorder) callback(level slog.Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	r.levels = append(r.levels, level)
}

func (r *sinkRecorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m == event || strings.HasPrefix(m, event+" (") {
			n++
		}
	}
	return n
}

func (r *sinkRecorder) find(event string) (string, slog.Level, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.messages {
		if m == event || strings.HasPrefix(m, event+" (") {
			return m, r.levels[i], true
		}
	}
	return "", 0, false
}

// testMQTTConfig returns a valid config with short intervals and no throttling.
func testMQTTConfig() config.MQTTConfig {
	cfg := config.Default().MQTT
	cfg.Broker.Host = "localhost"
	cfg.Broker.Port = 1883
	cfg.Broker.ClientID = "mqtt-connector-test"
	cfg.Reconnect.Interval = testInterval.Seconds()
	cfg.Reconnect.MaxAttempts = -1
	cfg.Throttle.Interval = 0
	return cfg
}

// newTestConnector builds a Connector over a fake broker with a sink recorder
// installed.
func newTestConnector(t *testing.T, mutate func(*config.MQTTConfig)) (*Connector, *fakeBroker, *sinkRecorder) {
	t.Helper()

	cfg := testMQTTConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	broker := newFakeBroker()
	c, err := New(cfg, WithAdapterFactory(broker.factory))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Disconnect)

	sink := &sinkRecorder{}
	c.SetLogCallback(sink.callback)
	return c, broker, sink
}

// waitFor polls cond until it holds or timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
