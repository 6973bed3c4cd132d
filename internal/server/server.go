// Package server wires the family device's HTTP surface.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dukerupert/tvtime/internal/app"
	"github.com/dukerupert/tvtime/internal/handler"
	"github.com/dukerupert/tvtime/internal/metrics"
	"github.com/dukerupert/tvtime/internal/middleware"
	ws "github.com/dukerupert/tvtime/internal/websocket"
)

type Server struct {
	hub      *ws.Hub
	childH   *handler.ChildHandler
	choreH   *handler.ChoreHandler
	statusH  *handler.StatusHandler
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// New builds the device server. hub must be the notifier a was built with
// so ledger changes reach /ws clients.
func New(a *app.App, hub *ws.Hub, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	return &Server{
		hub:      hub,
		childH:   handler.NewChildHandler(a, logger.With("component", "children")),
		choreH:   handler.NewChoreHandler(a, logger.With("component", "chores")),
		statusH:  handler.NewStatusHandler(a, logger.With("component", "status")),
		gatherer: gatherer,
		logger:   logger,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(s.gatherer))
	}
	mux.HandleFunc("GET /ws", ws.DisplayHandler(s.hub))

	mux.HandleFunc("GET /api/status", s.statusH.Status)
	mux.HandleFunc("GET /api/family", s.statusH.GetFamily)
	mux.HandleFunc("PUT /api/family", s.statusH.PutFamily)
	mux.HandleFunc("POST /api/bonus/check", s.statusH.CheckBonus)

	mux.HandleFunc("GET /api/children", s.childH.List)
	mux.HandleFunc("POST /api/children", s.childH.Create)
	mux.HandleFunc("DELETE /api/children/{id}", s.childH.Delete)
	mux.HandleFunc("POST /api/children/{id}/time", s.childH.AdjustTime)
	mux.HandleFunc("POST /api/children/{id}/chores/{chore_id}", s.childH.GrantChore)

	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.HandleFunc("POST /api/chores", s.choreH.Create)
	mux.HandleFunc("PUT /api/chores/{id}", s.choreH.Update)
	mux.HandleFunc("DELETE /api/chores/{id}", s.choreH.Delete)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
