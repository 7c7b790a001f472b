package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the MQTT connector.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Throttle  MQTTThrottleConfig  `yaml:"throttle"`
	Timeouts  MQTTTimeoutConfig   `yaml:"timeouts"`

	// KeepAlive is the MQTT keepalive interval in seconds.
	KeepAlive int `yaml:"keepalive"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`

	// Port of the broker. 0 selects 1883, or 8883 when TLS is enabled.
	Port int `yaml:"port"`

	// ClientID identifies the connector to the broker.
	// A random identifier is generated when empty.
	ClientID string `yaml:"client_id"`

	TLS MQTTTLSConfig `yaml:"tls"`
}

// MQTTTLSConfig contains TLS settings for the broker connection.
type MQTTTLSConfig struct {
	Enabled bool `yaml:"enabled"`

	// Verify enables broker certificate verification.
	// Disable only for brokers with self-signed certificates in development.
	Verify bool `yaml:"verify"`

	CAFile   string `yaml:"ca_file"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	// Interval is the fixed delay between reconnect attempts, in seconds.
	Interval float64 `yaml:"interval"`

	// MaxAttempts bounds consecutive reconnect attempts. -1 means unbounded.
	MaxAttempts int `yaml:"max_attempts"`
}

// MQTTThrottleConfig contains publish rate limiting settings.
type MQTTThrottleConfig struct {
	// Interval is the minimum spacing between publishes, in seconds. 0 disables throttling.
	Interval float64 `yaml:"interval"`
}

// MQTTTimeoutConfig contains per-operation timeouts, in seconds.
type MQTTTimeoutConfig struct {
	Connect   int `yaml:"connect"`
	Operation int `yaml:"operation"`
}

// APIConfig contains settings for the optional HTTP status server.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`

	// JWTSecret, when set, protects status and event routes with HS256
	// bearer tokens. Must be at least 32 characters.
	JWTSecret string `yaml:"jwt_secret"`

	WebSocket WebSocketConfig `yaml:"websocket"`
}

// APITimeoutConfig contains HTTP server timeouts, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains settings for the event stream.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for the event recorder.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MQTTCONN_KEY
// For example: MQTTCONN_BROKER_HOST, MQTTCONN_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
//
// The result is not validated: broker.host has a default but callers
// that build a config in code should still call Validate.
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				TLS: MQTTTLSConfig{
					Verify: true,
				},
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				Interval:    5,
				MaxAttempts: -1,
			},
			Throttle: MQTTThrottleConfig{
				Interval: 0.1,
			},
			Timeouts: MQTTTimeoutConfig{
				Connect:   10,
				Operation: 5,
			},
			KeepAlive: 60,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MQTTCONN_KEY
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("MQTTCONN_BROKER_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MQTTCONN_BROKER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MQTTCONN_BROKER_PORT %q: %w", v, err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("MQTTCONN_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("MQTTCONN_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MQTTCONN_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("MQTTCONN_API_JWT_SECRET"); v != "" {
		cfg.API.JWTSecret = v
	}

	if v := os.Getenv("MQTTCONN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, c.MQTT.validate()...)

	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
		if c.API.WebSocket.PingInterval <= 0 || c.API.WebSocket.PongTimeout <= 0 {
			errs = append(errs, "api.websocket ping_interval and pong_timeout must be greater than 0")
		}
	}
	const minJWTSecretLength = 32
	if c.API.JWTSecret != "" && len(c.API.JWTSecret) < minJWTSecretLength {
		errs = append(errs, "api.jwt_secret must be at least 32 characters")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Validate checks the MQTT section on its own.
// The connector calls this when it is constructed from code rather than Load.
func (m MQTTConfig) Validate() error {
	if errs := m.validate(); len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (m MQTTConfig) validate() []string {
	var errs []string

	if m.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if m.Broker.Port < 0 || m.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 0 and 65535")
	}
	if m.QoS < 0 || m.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if !durationSeconds(m.Reconnect.Interval) || m.GetReconnectInterval() < minInterval {
		errs = append(errs, "mqtt.reconnect.interval must be a finite number of seconds, at least 0.001")
	}
	if m.Reconnect.MaxAttempts < -1 {
		errs = append(errs, "mqtt.reconnect.max_attempts must be -1 (unbounded) or >= 0")
	}
	if !durationSeconds(m.Throttle.Interval) || m.Throttle.Interval < 0 ||
		(m.Throttle.Interval > 0 && m.GetThrottleInterval() < minInterval) {
		errs = append(errs, "mqtt.throttle.interval must be 0 or a finite number of seconds, at least 0.001")
	}
	if (m.Broker.TLS.CertFile == "") != (m.Broker.TLS.KeyFile == "") {
		errs = append(errs, "mqtt.broker.tls.cert_file and key_file must be set together")
	}
	if m.Timeouts.Connect < 0 || m.Timeouts.Operation < 0 {
		errs = append(errs, "mqtt.timeouts must not be negative")
	}

	return errs
}

// BrokerPort returns the configured port, or the MQTT default for the transport.
func (m MQTTConfig) BrokerPort() int {
	if m.Broker.Port != 0 {
		return m.Broker.Port
	}
	if m.Broker.TLS.Enabled {
		return 8883
	}
	return 1883
}

// GetReconnectInterval returns the reconnect interval as a Duration.
func (m MQTTConfig) GetReconnectInterval() time.Duration {
	return secondsToDuration(m.Reconnect.Interval)
}

// GetThrottleInterval returns the publish throttle interval as a Duration.
func (m MQTTConfig) GetThrottleInterval() time.Duration {
	return secondsToDuration(m.Throttle.Interval)
}

// GetConnectTimeout returns the connect timeout as a Duration.
func (m MQTTConfig) GetConnectTimeout() time.Duration {
	return time.Duration(m.Timeouts.Connect) * time.Second
}

// GetOperationTimeout returns the publish/subscribe timeout as a Duration.
func (m MQTTConfig) GetOperationTimeout() time.Duration {
	return time.Duration(m.Timeouts.Operation) * time.Second
}

// GetKeepAlive returns the keepalive interval as a Duration.
func (m MQTTConfig) GetKeepAlive() time.Duration {
	return time.Duration(m.KeepAlive) * time.Second
}

// minInterval is the smallest non-zero reconnect or throttle interval.
const minInterval = time.Millisecond

// maxSeconds is the largest seconds value a time.Duration can hold.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

// durationSeconds reports whether s converts to a time.Duration without
// overflow. YAML accepts .nan and .inf, which do not.
func durationSeconds(s float64) bool {
	return !math.IsNaN(s) && !math.IsInf(s, 0) && math.Abs(s) <= maxSeconds
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// GetReadTimeout returns the API read timeout as a Duration.
func (a APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(a.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (a APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(a.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (a APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(a.Timeouts.Idle) * time.Second
}
