// Package mqtt adapts the Eclipse Paho MQTT client to the connector.
//
// This package provides:
//   - A single-use Client wrapping one paho connection
//   - Broker URL, authentication and TLS option building
//   - Topic name and topic filter validation
//   - Connection and message notifications through Handlers
//
// # Reconnection
//
// paho's auto-reconnect and connect-retry are disabled. A Client reports
// connection loss through Handlers.OnDisconnected and is then discarded;
// the connector's supervisor decides when to build the next one.
//
// # Security Considerations
//
//   - TLS 1.2 is the minimum version when tls.enabled is set
//   - tls.verify=false disables broker certificate checks and is meant for development only
//   - Credentials are sent only in the CONNECT packet; use TLS on untrusted networks
//
// # Usage
//
//	client, err := mqtt.NewClient(cfg.MQTT, mqtt.Handlers{
//	    OnConnected:    func() { log.Print("connected") },
//	    OnDisconnected: func(err error) { log.Print("lost: ", err) },
//	    OnMessage: func(topic string, payload []byte) {
//	        log.Printf("%s = %s", topic, payload)
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err) // ErrTLSConfiguration
//	}
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err) // ErrConnectionFailed
//	}
//	defer client.Disconnect()
package mqtt
