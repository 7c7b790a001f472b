package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/status", s.handleStatus)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth reports 200 while the connector is connected and 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	connected := s.connector.IsConnected()
	status, text := http.StatusOK, "ok"
	if !connected {
		status, text = http.StatusServiceUnavailable, ErrCodeUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":    text,
		"connected": connected,
		"version":   s.version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.connector.Stats())
}
