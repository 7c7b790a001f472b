// Package config handles loading and validating MQTT connector configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields and numeric bounds
//   - Default value handling
//
// Security Considerations:
//   - Broker passwords, InfluxDB tokens and api.jwt_secret should be set via
//     environment variables (MQTTCONN_PASSWORD, MQTTCONN_INFLUXDB_TOKEN,
//     MQTTCONN_API_JWT_SECRET)
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/connector.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Broker.Host)
package config
