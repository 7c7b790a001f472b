package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/mqtt-connector/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout applies when the config leaves timeouts.connect at 0.
	defaultConnectTimeout = 10 * time.Second

	// defaultOperationTimeout applies to publish and subscribe acknowledgements.
	defaultOperationTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is the keepalive interval when none is configured.
	defaultKeepAlive = 60 * time.Second

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// BrokerURL returns the paho broker URL for cfg.
// The scheme is ssl:// when TLS is enabled and tcp:// otherwise.
func BrokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS.Enabled {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(cfg.Broker.Host, strconv.Itoa(cfg.BrokerPort())))
}

// buildClientOptions creates paho MQTT options from the connector config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - TLS configuration (if enabled)
//   - Clean session mode
//
// paho's own reconnect logic is switched off: retry timing and attempt
// bounds belong to the connector's supervisor.
func buildClientOptions(cfg config.MQTTConfig, tlsConfig *tls.Config) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(BrokerURL(cfg))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(ConnectTimeout(cfg))

	keepAlive := cfg.GetKeepAlive()
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	opts.SetKeepAlive(keepAlive)

	// Message handlers run on their own goroutines; ordering is not required.
	opts.SetOrderMatters(false)

	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}

	return opts
}

// ConnectTimeout returns timeouts.connect, or 10s when unset.
func ConnectTimeout(cfg config.MQTTConfig) time.Duration {
	if d := cfg.GetConnectTimeout(); d > 0 {
		return d
	}
	return defaultConnectTimeout
}

// OperationTimeout returns timeouts.operation, or 5s when unset.
func OperationTimeout(cfg config.MQTTConfig) time.Duration {
	if d := cfg.GetOperationTimeout(); d > 0 {
		return d
	}
	return defaultOperationTimeout
}

// BuildTLSConfig returns the TLS configuration for cfg, or nil when TLS is
// disabled. Unreadable or malformed CA, certificate or key files produce an
// error wrapping ErrTLSConfiguration.
func BuildTLSConfig(cfg config.MQTTConfig) (*tls.Config, error) {
	tlsCfg := cfg.Broker.TLS
	if !tlsCfg.Enabled {
		return nil, nil
	}

	out := &tls.Config{
		MinVersion: tlsMinVersion,
		ServerName: cfg.Broker.Host,
		// #nosec G402 -- verification is an explicit operator choice (tls.verify)
		InsecureSkipVerify: !tlsCfg.Verify,
	}

	if tlsCfg.CAFile != "" {
		pem, err := os.ReadFile(tlsCfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("%w: reading CA file: %w", ErrTLSConfiguration, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: no certificates found in %s", ErrTLSConfiguration, tlsCfg.CAFile)
		}
		out.RootCAs = pool
	}

	switch {
	case tlsCfg.CertFile != "" && tlsCfg.KeyFile != "":
		cert, err := tls.LoadX509KeyPair(tlsCfg.CertFile, tlsCfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: loading client certificate: %w", ErrTLSConfiguration, err)
		}
		out.Certificates = []tls.Certificate{cert}
	case tlsCfg.CertFile != "" || tlsCfg.KeyFile != "":
		return nil, fmt.Errorf("%w: cert_file and key_file must be set together", ErrTLSConfiguration)
	}

	return out, nil
}
