package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/mqtt-connector/internal/connector"
	"github.com/nerrad567/mqtt-connector/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-connector/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// WebSocket channels.
const (
	ChannelConnectorEvent = "connector.event"
	ChannelMQTTMessage    = "mqtt.message"
)

// StatusSource is the connector view the server reports on.
// *connector.Connector satisfies it.
type StatusSource interface {
	Stats() connector.Stats
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Connector StatusSource
	Version   string
}

// Server is the HTTP status server.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	connector StatusSource
	version   string
	hub       *Hub

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a server. It does not listen until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Connector == nil {
		return nil, fmt.Errorf("connector is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		connector: deps.Connector,
		version:   deps.Version,
		hub:       NewHub(deps.Config.WebSocket, deps.Logger),
	}, nil
}

// Start binds the listener and serves in the background.
// A bind failure (port in use) is returned synchronously.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started",
		"address", ln.Addr().String(),
		"auth", s.cfg.JWTSecret != "",
	)
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts the server down, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel := s.server, s.cancel
	s.server, s.listener, s.cancel = nil, nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// PublishEvent broadcasts a connector log message on connector.event.
// Its signature matches connector.LogCallback.
func (s *Server) PublishEvent(level slog.Level, message string) {
	s.hub.Broadcast(ChannelConnectorEvent, map[string]string{
		"level":   level.String(),
		"message": message,
	})
}

// PublishMessage broadcasts a received MQTT message on mqtt.message.
func (s *Server) PublishMessage(topic string, payload []byte) {
	s.hub.Broadcast(ChannelMQTTMessage, map[string]any{
		"topic":   topic,
		"payload": string(payload),
		"bytes":   len(payload),
	})
}
