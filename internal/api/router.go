package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-node/internal/automation"
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

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/peripherals", s.handleListPeripherals)
		r.Get("/pins", s.handlePins)

		r.Route("/automations", func(r chi.Router) {
			r.Get("/", s.handleListAutomations)
			r.Get("/{id}", s.handleGetAutomation)
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	code := http.StatusOK
	if s.mqtt != nil && !s.mqtt.IsConnected() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
	})
}

// handleListPeripherals lists peripherals with their kind, pins and methods.
func (s *Server) handleListPeripherals(w http.ResponseWriter, _ *http.Request) {
	infos := s.peripherals.Describe()
	writeJSON(w, http.StatusOK, map[string]any{
		"peripherals": infos,
		"count":       len(infos),
	})
}

// handlePins returns the static pin map, as answered to a pins query.
func (s *Server) handlePins(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"pins": s.peripherals.Pins(),
	})
}

// handleListAutomations lists registered rules in registration order.
func (s *Server) handleListAutomations(w http.ResponseWriter, _ *http.Request) {
	rules := s.rules.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"automations": rules,
		"count":       len(rules),
	})
}

// handleGetAutomation returns one rule.
func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	rule, err := s.rules.Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, automation.ErrRuleNotFound) {
			writeNotFound(w, "automation not found")
			return
		}
		writeInternalError(w, "failed to load automation")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}
