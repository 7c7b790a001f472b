package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/mqtt-connector/internal/connector"
	"github.com/nerrad567/mqtt-connector/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-connector/internal/infrastructure/mqtt"
)

func newPublishCmd(load loader) *cobra.Command {
	var (
		topic   string
		message string
		asJSON  bool
		qos     int
		retain  bool
		count   int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish messages in a single connect/disconnect session",
		Long: `Publish connects, waits for the broker, publishes --count copies of the
message through the throttle and disconnects.

With --json the message is parsed and re-encoded, so invalid JSON is
rejected before anything is sent.

The whole session is bounded by --timeout. When it is not set the bound is
the connect timeout plus, per message, the throttle interval and the
operation timeout, so an unreachable broker does not block forever.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if topic == "" {
				return fmt.Errorf("--topic is required")
			}
			if qos < 0 || qos > 2 {
				return fmt.Errorf("--qos must be 0, 1 or 2, got %d", qos)
			}
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}

			var payload any = message
			if asJSON {
				var doc any
				if err := json.Unmarshal([]byte(message), &doc); err != nil {
					return fmt.Errorf("--message is not valid JSON: %w", err)
				}
				payload = doc
			}

			cfg, log, err := load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("qos") {
				qos = cfg.MQTT.QoS
			}

			conn, err := connector.New(cfg.MQTT, connector.WithLogger(log.With("component", "connector")))
			if err != nil {
				return fmt.Errorf("creating connector: %w", err)
			}
			conn.SetLogCallback(log.Callback())

			if timeout <= 0 {
				timeout = sessionTimeout(cfg.MQTT, count)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			err = conn.Session(ctx, func(ctx context.Context) error {
				for i := 0; i < count; i++ {
					if err := conn.Publish(ctx, topic, payload, byte(qos), retain); err != nil {
						return fmt.Errorf("publish %d of %d: %w", i+1, count, err)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "published %d message(s) to %s\n", count, topic)
			return nil
		},
	}

	cmd.Flags().StringVarP(&topic, "topic", "t", "", "topic to publish to")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message payload")
	cmd.Flags().BoolVar(&asJSON, "json", false, "parse --message as JSON")
	cmd.Flags().IntVarP(&qos, "qos", "q", 0, "publish QoS (default mqtt.qos)")
	cmd.Flags().BoolVarP(&retain, "retain", "r", false, "set the retain flag")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of copies to publish")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "bound on the whole session (default derived from mqtt.timeouts)")
	return cmd
}

// sessionTimeout bounds a publish session of count messages.
func sessionTimeout(cfg config.MQTTConfig, count int) time.Duration {
	perMessage := cfg.GetThrottleInterval() + mqtt.OperationTimeout(cfg)
	return mqtt.ConnectTimeout(cfg) + time.Duration(count)*perMessage
}
