package connector

import (
	"errors"

	"github.com/nerrad567/mqtt-connector/internal/infrastructure/mqtt"
)

// Connector error kinds. Use errors.Is() to check for these errors.
var (
	// ErrConnectionRefused is returned when the broker rejects or never
	// answers a connect. The reconnect policy still runs.
	ErrConnectionRefused = errors.New("connector: connection refused")

	// ErrNotConnected is returned by operations that need an established
	// connection. It is never retried automatically.
	ErrNotConnected = errors.New("connector: not connected")

	// ErrRetriesExhausted is reported once the reconnect bound is reached.
	// Only a forced connect leaves that state.
	ErrRetriesExhausted = errors.New("connector: reconnect attempts exhausted")

	// ErrPayloadEncoding is returned when a structured message cannot be
	// serialised. Connection state is unaffected.
	ErrPayloadEncoding = errors.New("connector: payload encoding failed")

	// ErrInvalidConfig is returned by New for configuration that fails validation.
	ErrInvalidConfig = errors.New("connector: invalid configuration")
)

// Errors surfaced unchanged from the protocol client.
var (
	ErrTLSConfiguration = mqtt.ErrTLSConfiguration
	ErrInvalidTopic     = mqtt.ErrInvalidTopic
	ErrInvalidQoS       = mqtt.ErrInvalidQoS
	ErrPayloadTooLarge  = mqtt.ErrPayloadTooLarge
	ErrPublishFailed    = mqtt.ErrPublishFailed
	ErrSubscribeFailed  = mqtt.ErrSubscribeFailed
)
