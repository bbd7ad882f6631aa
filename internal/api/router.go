package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint (no auth, like other bridge health surfaces)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		r.Route("/nodes", func(r chi.Router) {
			r.Get("/", s.handleListNodes)
			r.Get("/{id}", s.handleGetNode)
		})

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/ws/ticket", s.handleWSTicket)
			r.Post("/nodes/{id}/commands", s.handleNodeCommand)
			r.Post("/controller/{action}", s.handleControllerCommand)

			r.Get("/events", s.handleListEvents)
			r.Get("/commands", s.handleListCommands)
		})
	})

	return r
}

// handleHealth reports liveness plus whether the controller is usable.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.session.Stats()
	status := "ok"
	if !stats.Connected || !stats.Ready {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       status,
		"version":      s.version,
		"connected":    stats.Connected,
		"driver_ready": stats.Ready,
	})
}

// handleStatus returns session, bridge, journal and WebSocket counters.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"session":        s.session.Stats(),
		"websocket": map[string]any{
			"clients": s.hub.ClientCount(),
			"sent":    s.hub.Sent(),
			"dropped": s.hub.Dropped(),
		},
	}
	if s.bridge != nil {
		resp["bridge"] = s.bridge.GetMetrics()
	}
	if s.journal != nil {
		resp["journal"] = s.journal.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeUnavailable(w, "metrics not enabled")
		return
	}
	s.metrics.ServeHTTP(w, r)
}
