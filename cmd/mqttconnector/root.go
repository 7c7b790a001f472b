package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/mqtt-connector/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-connector/internal/infrastructure/logging"
)

const defaultConfigPath = "configs/connector.yaml"

// newRootCmd builds the command tree. A fresh tree per call keeps flag
// state out of package globals.
func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "mqttconnector",
		Short: "Managed MQTT connection with reconnect and publish throttling",
		Long: `mqttconnector keeps a supervised MQTT connection open.

Lost connections are retried at a fixed interval up to a configured bound,
subscriptions are replayed after every reconnect and publishes are spaced
by a minimum interval.

Examples:
  # Stream everything under sensors/ until Ctrl+C
  mqttconnector run -t 'sensors/#'

  # Publish a JSON document once
  mqttconnector publish -t lights/kitchen -m '{"on":true}' --qos 1

  # Mint a token for the status API
  mqttconnector token --subject ops --ttl 24h
`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $MQTTCONN_CONFIG or "+defaultConfigPath+")")

	load := func() (*config.Config, *logging.Logger, error) {
		path := configPath(cfgFile)
		cfg, err := config.Load(path)
		if err != nil {
			return nil, nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, logging.New(cfg.Logging, version), nil
	}

	root.AddCommand(newRunCmd(load))
	root.AddCommand(newPublishCmd(load))
	root.AddCommand(newTokenCmd(load))
	return root
}

// loader loads the configuration selected by --config.
type loader func() (*config.Config, *logging.Logger, error)

// configPath resolves the configuration file: flag, then MQTTCONN_CONFIG,
// then the default.
func configPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("MQTTCONN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
