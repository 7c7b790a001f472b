package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "connector.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
mqtt:
  broker:
    host: "broker.local"
    port: 1884
    client_id: "test-client"
    tls:
      enabled: false
  auth:
    username: "sensor"
  reconnect:
    interval: 1
    max_attempts: 3
  throttle:
    interval: 0.2
logging:
  level: "debug"
  format: "text"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.MQTT.Broker.Port != 1884 {
		t.Errorf("MQTT.Broker.Port = %d, want 1884", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "sensor" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "sensor")
	}
	if cfg.MQTT.Reconnect.MaxAttempts != 3 {
		t.Errorf("MQTT.Reconnect.MaxAttempts = %d, want 3", cfg.MQTT.Reconnect.MaxAttempts)
	}
	if got := cfg.MQTT.GetThrottleInterval(); got != 200*time.Millisecond {
		t.Errorf("GetThrottleInterval() = %v, want 200ms", got)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "text")
	}
}

func TestLoad_KeepsDefaultsForMissingKeys(t *testing.T) {
	configPath := writeConfig(t, `
mqtt:
  broker:
    host: "broker.local"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.MQTT.GetReconnectInterval(); got != 5*time.Second {
		t.Errorf("GetReconnectInterval() = %v, want 5s", got)
	}
	if cfg.MQTT.Reconnect.MaxAttempts != -1 {
		t.Errorf("MQTT.Reconnect.MaxAttempts = %d, want -1", cfg.MQTT.Reconnect.MaxAttempts)
	}
	if !cfg.MQTT.Broker.TLS.Verify {
		t.Error("MQTT.Broker.TLS.Verify = false, want true by default")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/connector.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
mqtt:
  reconnect:
    interval: 0
`)

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for zero reconnect interval, got nil")
	}
}

func TestLoad_InvalidPortOverride(t *testing.T) {
	configPath := writeConfig(t, `
mqtt:
  broker:
    host: "broker.local"
`)
	t.Setenv("MQTTCONN_BROKER_PORT", "not-a-port")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for non-numeric MQTTCONN_BROKER_PORT, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.MQTT.Broker.Host = "localhost"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.MQTT.Broker.Host = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "zero reconnect interval",
			mutate:  func(c *Config) { c.MQTT.Reconnect.Interval = 0 },
			wantErr: true,
		},
		{
			name:    "negative throttle interval",
			mutate:  func(c *Config) { c.MQTT.Throttle.Interval = -0.5 },
			wantErr: true,
		},
		{
			name:    "NaN reconnect interval",
			mutate:  func(c *Config) { c.MQTT.Reconnect.Interval = math.NaN() },
			wantErr: true,
		},
		{
			name:    "infinite reconnect interval",
			mutate:  func(c *Config) { c.MQTT.Reconnect.Interval = math.Inf(1) },
			wantErr: true,
		},
		{
			name:    "reconnect interval overflowing Duration",
			mutate:  func(c *Config) { c.MQTT.Reconnect.Interval = 1e300 },
			wantErr: true,
		},
		{
			name:    "reconnect interval rounding to zero",
			mutate:  func(c *Config) { c.MQTT.Reconnect.Interval = 1e-12 },
			wantErr: true,
		},
		{
			name:    "millisecond reconnect interval",
			mutate:  func(c *Config) { c.MQTT.Reconnect.Interval = 0.001 },
			wantErr: false,
		},
		{
			name:    "NaN throttle interval",
			mutate:  func(c *Config) { c.MQTT.Throttle.Interval = math.NaN() },
			wantErr: true,
		},
		{
			name:    "infinite throttle interval",
			mutate:  func(c *Config) { c.MQTT.Throttle.Interval = math.Inf(1) },
			wantErr: true,
		},
		{
			name:    "throttle interval rounding to zero",
			mutate:  func(c *Config) { c.MQTT.Throttle.Interval = 1e-12 },
			wantErr: true,
		},
		{
			name:    "zero throttle interval",
			mutate:  func(c *Config) { c.MQTT.Throttle.Interval = 0 },
			wantErr: false,
		},
		{
			name:    "unbounded attempts",
			mutate:  func(c *Config) { c.MQTT.Reconnect.MaxAttempts = -1 },
			wantErr: false,
		},
		{
			name:    "max attempts below -1",
			mutate:  func(c *Config) { c.MQTT.Reconnect.MaxAttempts = -2 },
			wantErr: true,
		},
		{
			name:    "cert without key",
			mutate:  func(c *Config) { c.MQTT.Broker.TLS.CertFile = "/etc/certs/client.pem" },
			wantErr: true,
		},
		{
			name:    "api enabled with bad port",
			mutate:  func(c *Config) { c.API.Enabled = true; c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "api enabled without ping interval",
			mutate:  func(c *Config) { c.API.Enabled = true; c.API.WebSocket.PingInterval = 0 },
			wantErr: true,
		},
		{
			name:    "api disabled ignores port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: false,
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.API.JWTSecret = "too-short" },
			wantErr: true,
		},
		{
			name:    "jwt secret",
			mutate:  func(c *Config) { c.API.JWTSecret = strings.Repeat("k", 32) },
			wantErr: false,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Bucket = "events" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMQTTConfig_BrokerPort(t *testing.T) {
	tests := []struct {
		name string
		cfg  MQTTConfig
		want int
	}{
		{"plain default", MQTTConfig{}, 1883},
		{"tls default", MQTTConfig{Broker: MQTTBrokerConfig{TLS: MQTTTLSConfig{Enabled: true}}}, 8883},
		{"explicit port", MQTTConfig{Broker: MQTTBrokerConfig{Port: 9001, TLS: MQTTTLSConfig{Enabled: true}}}, 9001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.BrokerPort(); got != tt.want {
				t.Errorf("BrokerPort() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMQTTConfig_GetDurations(t *testing.T) {
	cfg := MQTTConfig{
		Reconnect: MQTTReconnectConfig{Interval: 1.5},
		Throttle:  MQTTThrottleConfig{Interval: 0.1},
		Timeouts:  MQTTTimeoutConfig{Connect: 10, Operation: 5},
		KeepAlive: 30,
	}

	if got := cfg.GetReconnectInterval(); got != 1500*time.Millisecond {
		t.Errorf("GetReconnectInterval() = %v, want 1.5s", got)
	}
	if got := cfg.GetThrottleInterval(); got != 100*time.Millisecond {
		t.Errorf("GetThrottleInterval() = %v, want 100ms", got)
	}
	if got := cfg.GetConnectTimeout().Seconds(); got != 10 {
		t.Errorf("GetConnectTimeout() = %v, want 10", got)
	}
	if got := cfg.GetOperationTimeout().Seconds(); got != 5 {
		t.Errorf("GetOperationTimeout() = %v, want 5", got)
	}
	if got := cfg.GetKeepAlive().Seconds(); got != 30 {
		t.Errorf("GetKeepAlive() = %v, want 30", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("MQTTCONN_BROKER_HOST", "mqtt.example.com")
	t.Setenv("MQTTCONN_BROKER_PORT", "8884")
	t.Setenv("MQTTCONN_CLIENT_ID", "edge-01")
	t.Setenv("MQTTCONN_USERNAME", "testuser")
	t.Setenv("MQTTCONN_PASSWORD", "testpass")
	t.Setenv("MQTTCONN_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("MQTTCONN_API_JWT_SECRET", "api-secret")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8884 {
		t.Errorf("MQTT.Broker.Port = %d, want 8884", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Broker.ClientID != "edge-01" {
		t.Errorf("MQTT.Broker.ClientID = %q, want %q", cfg.MQTT.Broker.ClientID, "edge-01")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.API.JWTSecret != "api-secret" {
		t.Errorf("API.JWTSecret = %q, want %q", cfg.API.JWTSecret, "api-secret")
	}
}

func TestAPIConfig_GetTimeouts(t *testing.T) {
	api := Default().API

	if got := api.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := api.GetWriteTimeout(); got != 30*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 30s", got)
	}
	if got := api.GetIdleTimeout(); got != time.Minute {
		t.Errorf("GetIdleTimeout() = %v, want 1m", got)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.MQTT.Broker.Host == "" {
		t.Error("Default should have non-empty MQTT.Broker.Host")
	}
	if cfg.MQTT.BrokerPort() != 1883 {
		t.Errorf("Default MQTT.BrokerPort() = %d, want 1883", cfg.MQTT.BrokerPort())
	}
	if cfg.MQTT.Reconnect.Interval != 5 {
		t.Errorf("Default MQTT.Reconnect.Interval = %v, want 5", cfg.MQTT.Reconnect.Interval)
	}
	if cfg.MQTT.Throttle.Interval != 0.1 {
		t.Errorf("Default MQTT.Throttle.Interval = %v, want 0.1", cfg.MQTT.Throttle.Interval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestLoad_NonFiniteIntervals(t *testing.T) {
	for _, value := range []string{".nan", ".inf", "-.inf"} {
		t.Run(value, func(t *testing.T) {
			path := writeConfig(t, "mqtt:\n  broker:\n    host: localhost\n  reconnect:\n    interval: "+value+"\n")
			if _, err := Load(path); err == nil {
				t.Errorf("Load() with reconnect.interval %s succeeded, want validation error", value)
			}
		})
	}
}
