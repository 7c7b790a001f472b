// Package logging provides structured logging for the MQTT connector.
//
// This package wraps Go's standard log/slog package so the CLI, the
// connector and the adapter log with the same handler and default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("connecting", "broker", "localhost:1883")
//
// Never log broker passwords or InfluxDB tokens.
package logging
