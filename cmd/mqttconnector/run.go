package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/mqtt-connector/internal/api"
	"github.com/nerrad567/mqtt-connector/internal/connector"
	"github.com/nerrad567/mqtt-connector/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-connector/internal/infrastructure/influxdb"
	"github.com/nerrad567/mqtt-connector/internal/infrastructure/logging"
)

func newRunCmd(load loader) *cobra.Command {
	var (
		topics []string
		qos    int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect and stream messages until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("qos") {
				qos = cfg.MQTT.QoS
			}
			if qos < 0 || qos > 2 {
				return fmt.Errorf("--qos must be 0, 1 or 2, got %d", qos)
			}
			return runConnector(cmd.Context(), cfg, log, topics, byte(qos))
		},
	}

	cmd.Flags().StringSliceVarP(&topics, "topic", "t", nil, "topic filter to subscribe to (repeatable)")
	cmd.Flags().IntVarP(&qos, "qos", "q", 0, "subscription QoS (default mqtt.qos)")
	return cmd
}

// runConnector wires the connector to its sinks and blocks until ctx is
// cancelled or the reconnect bound is exhausted.
func runConnector(ctx context.Context, cfg *config.Config, log *logging.Logger, topics []string, qos byte) error {
	log.Info("starting mqtt connector",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	conn, err := connector.New(cfg.MQTT, connector.WithLogger(log.With("component", "connector")))
	if err != nil {
		return fmt.Errorf("creating connector: %w", err)
	}
	defer conn.Disconnect()
	clientID := conn.ClientID()

	sinks := []connector.LogCallback{log.Callback()}
	var onMessage []func(topic string, payload []byte)

	recorder, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
	case err != nil:
		log.Warn("event recorder unavailable, continuing without it", "error", err)
	default:
		defer func() {
			if closeErr := recorder.Close(); closeErr != nil {
				log.Error("error closing event recorder", "error", closeErr)
			}
		}()
		recorder.SetOnError(func(err error) {
			log.Warn("event recorder write failed", "error", err)
		})
		sinks = append(sinks, recorder.Callback(clientID))
		onMessage = append(onMessage, func(topic string, payload []byte) {
			recorder.RecordMessage(clientID, topic, len(payload))
		})
		log.Info("event recorder connected", "url", cfg.InfluxDB.URL)
	}

	if cfg.API.Enabled {
		srv, err := api.New(api.Deps{
			Config:    cfg.API,
			Logger:    log.With("component", "api"),
			Connector: conn,
			Version:   version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		sinks = append(sinks, srv.PublishEvent)
		onMessage = append(onMessage, srv.PublishMessage)
	}

	exhausted := make(chan struct{}, 1)
	conn.SetLogCallback(func(level slog.Level, message string) {
		for _, sink := range sinks {
			sink(level, message)
		}
		if strings.HasPrefix(message, connector.EventRetriesExhausted) {
			select {
			case exhausted <- struct{}{}:
			default:
			}
		}
	})
	conn.SetOnMessage(func(topic string, payload []byte) {
		log.Info("message received", "topic", topic, "bytes", len(payload), "payload", string(payload))
		for _, fn := range onMessage {
			fn(topic, payload)
		}
	})

	for _, topic := range topics {
		if err := conn.Subscribe(ctx, topic, qos); err != nil {
			return fmt.Errorf("subscribing to %q: %w", topic, err)
		}
	}

	if !conn.Connect(ctx, false) && conn.State() == connector.StateDisconnected {
		return fmt.Errorf("connecting: %w", conn.WaitConnected(ctx))
	}

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		return nil
	case <-exhausted:
		return fmt.Errorf("connection to %s lost: %w", conn.Stats().Broker, connector.ErrRetriesExhausted)
	}
}
