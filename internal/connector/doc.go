// Package connector manages a single MQTT broker connection on behalf of an
// application.
//
// A Connector layers three things over the raw protocol client in
// internal/infrastructure/mqtt:
//
//   - A supervisor that owns the connection state machine, schedules
//     fixed-interval reconnects and bounds the number of attempts
//   - A throttle gate that spaces outgoing publishes by a minimum interval
//     without dropping or reordering them
//   - Subscription tracking, so every requested topic filter is replayed in
//     request order after each successful (re)connect
//
// # States
//
//	disconnected --Connect--> connecting --connack--> connected
//	connecting/connected --lost--> reconnecting --interval--> connecting
//	reconnecting/connecting --bound reached--> exhausted
//	any --Disconnect--> disconnected
//
// Exhausted is left only through Connect(ctx, true).
//
// # Events
//
// Lifecycle events (connect attempts, losses, scheduled retries, throttling,
// failed operations) are written to the configured Logger and, when one is
// installed with SetLogCallback, passed to a single (level, message) sink.
// The sink never influences control flow.
//
// # Usage
//
//	conn, err := connector.New(cfg.MQTT, connector.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	conn.SetLogCallback(func(level slog.Level, msg string) { fmt.Println(level, msg) })
//
//	err = conn.Session(ctx, func(ctx context.Context) error {
//	    if err := conn.Subscribe(ctx, "example/topic", 0); err != nil {
//	        return err
//	    }
//	    return conn.Publish(ctx, "example/topic", map[string]string{"key": "value"}, 0, false)
//	})
//
// Thread Safety: All Connector methods are safe for concurrent use.
package connector
