package connector

import (
	"fmt"
	"log/slog"
	"sync"
)

// Event names. Every sink message starts with one of these, optionally
// followed by a parenthesised detail:
//
//	reconnect scheduled (attempt 2, delay 1s)
const (
	EventConnectAttempt     = "connect attempt"
	EventConnectFailed      = "connect failed"
	EventConnected          = "connected"
	EventDisconnected       = "disconnected"
	EventReconnectScheduled = "reconnect scheduled"
	EventRetriesExhausted   = "retries exhausted"
	EventPublishThrottled   = "publish throttled"
	EventPublishFailed      = "publish failed"
	EventSubscribeFailed    = "subscribe failed"
)

// LogCallback receives connector events as (severity, message) pairs.
type LogCallback func(level slog.Level, message string)

// Logger defines the logging interface for the connector.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// emitter fans an event out to the structured logger and the optional sink.
type emitter struct {
	logger Logger

	mu   sync.RWMutex
	sink LogCallback
}

func newEmitter(logger Logger) *emitter {
	return &emitter{logger: logger}
}

func (e *emitter) setSink(sink LogCallback) {
	e.mu.Lock()
	e.sink = sink
	e.mu.Unlock()
}

// emit logs event with attrs and passes "event (detail)" to the sink.
// Callers must not hold the supervisor lock.
func (e *emitter) emit(level slog.Level, event, detail string, attrs ...any) {
	switch {
	case level >= slog.LevelError:
		e.logger.Error(event, attrs...)
	case level >= slog.LevelWarn:
		e.logger.Warn(event, attrs...)
	case level >= slog.LevelInfo:
		e.logger.Info(event, attrs...)
	default:
		e.logger.Debug(event, attrs...)
	}

	e.mu.RLock()
	sink := e.sink
	e.mu.RUnlock()
	if sink == nil {
		return
	}

	message := event
	if detail != "" {
		message = fmt.Sprintf("%s (%s)", event, detail)
	}
	sink(level, message)
}
