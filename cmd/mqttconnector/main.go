// mqttconnector runs and exercises a managed MQTT connection.
//
// Usage:
//
//	mqttconnector [--config path] <command> [flags]
//
// Commands:
//
//	run      connect, subscribe and stream messages until interrupted
//	publish  publish one or more messages in a single session
//	token    mint a bearer token for the status server
//
// The configuration path defaults to $MQTTCONN_CONFIG, then
// configs/connector.yaml.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information, set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
