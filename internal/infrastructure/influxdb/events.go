package influxdb

import (
	"log/slog"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementEvents   = "connector_events"
	measurementMessages = "mqtt_messages"
)

// EventPoint builds the point for one connector event.
//
// The event name (the message up to " (") becomes a tag so events can be
// grouped; the full message is kept as a field.
func EventPoint(clientID string, level slog.Level, message string, at time.Time) *write.Point {
	event, _, _ := strings.Cut(message, " (")
	return write.NewPoint(
		measurementEvents,
		map[string]string{
			"client_id": clientID,
			"level":     level.String(),
			"event":     event,
		},
		map[string]interface{}{
			"message": message,
		},
		at,
	)
}

// MessagePoint builds the point for one received MQTT message.
func MessagePoint(clientID, topic string, size int, at time.Time) *write.Point {
	return write.NewPoint(
		measurementMessages,
		map[string]string{
			"client_id": clientID,
			"topic":     topic,
		},
		map[string]interface{}{
			"bytes": size,
		},
		at,
	)
}

// RecordEvent queues a connector event for writing.
func (c *Client) RecordEvent(clientID string, level slog.Level, message string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(EventPoint(clientID, level, message, time.Now()))
}

// RecordMessage queues a received-message sample for writing.
func (c *Client) RecordMessage(clientID, topic string, size int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(MessagePoint(clientID, topic, size, time.Now()))
}

// Callback returns a connector log callback that records every event
// under clientID.
//
//	conn.SetLogCallback(recorder.Callback(conn.ClientID()))
func (c *Client) Callback(clientID string) func(level slog.Level, message string) {
	return func(level slog.Level, message string) {
		c.RecordEvent(clientID, level, message)
	}
}
