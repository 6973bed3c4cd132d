// Package docserver is the shared family document service. Devices read and
// merge-write one document per family and receive every change over a
// WebSocket subscription.
package docserver

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	ws "github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dukerupert/tvtime/internal/metrics"
	"github.com/dukerupert/tvtime/internal/middleware"
	"github.com/dukerupert/tvtime/internal/model"
	"github.com/dukerupert/tvtime/internal/store"
	hubws "github.com/dukerupert/tvtime/internal/websocket"
)

const (
	maxBodySize    = 1 << 20
	maxFamilyIDLen = 128
)

type Server struct {
	docs     *store.DocumentStore
	hub      *hubws.Hub
	limiter  *middleware.RateLimiter
	metrics  *metrics.DocCollector
	gatherer prometheus.Gatherer
	now      func() time.Time
	logger   *slog.Logger

	// mu orders merges and their broadcast against subscription setup, so a
	// new subscriber never receives an older document after a newer one.
	mu sync.Mutex
}

// New builds the service over db. Metrics are registered with reg, which is
// also served at /metrics.
func New(db *sql.DB, limiter *middleware.RateLimiter, reg *prometheus.Registry, logger *slog.Logger) *Server {
	return &Server{
		docs:     store.NewDocumentStore(db),
		hub:      hubws.NewHub(logger.With("component", "websocket")),
		limiter:  limiter,
		metrics:  metrics.NewDocCollector(reg),
		gatherer: reg,
		now:      time.Now,
		logger:   logger,
	}
}

// Hub exposes the subscriber hub.
func (s *Server) Hub() *hubws.Hub {
	return s.hub
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.limiter
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(s.logger.With("component", "http")))

	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", metrics.Handler(s.gatherer))

	limited := middleware.RateLimit(s.limiter, middleware.RealIP, s.metrics.RecordRateLimited)
	r.Route("/api/families/{id}", func(r chi.Router) {
		r.Get("/", s.getDocument)
		r.With(limited).Patch("/", s.patchDocument)
		r.Get("/subscribe", s.subscribe)
	})
	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := familyID(w, r)
	if !ok {
		return
	}

	doc, err := s.docs.Get(id)
	if err != nil {
		s.logger.Error("failed to get document", "family_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get document")
		return
	}
	s.metrics.RecordRead(doc != nil)
	if doc == nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) patchDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := familyID(w, r)
	if !ok {
		return
	}

	var fields model.Fields
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if fields.Empty() {
		writeError(w, http.StatusBadRequest, "no fields to merge")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.docs.Merge(id, fields, s.now())
	if err != nil {
		s.logger.Error("failed to merge document", "family_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to merge document")
		return
	}
	s.metrics.RecordWrite()

	data, err := json.Marshal(doc)
	if err != nil {
		s.logger.Error("failed to marshal document", "family_id", id, "error", err)
	} else {
		s.hub.Publish(id, data)
	}
	w.WriteHeader(http.StatusNoContent)
}

// subscribe upgrades to a WebSocket that receives the current document, if
// any, and then every merged version.
func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := familyID(w, r)
	if !ok {
		return
	}

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.logger.Warn("websocket accept", "error", err)
		return
	}

	client := hubws.NewClient(s.hub, conn, id)
	if err := s.register(client, id); err != nil {
		s.logger.Error("failed to start subscription", "family_id", id, "error", err)
		conn.Close(ws.StatusInternalError, "failed to load document")
		return
	}
	s.metrics.SubscriberAdded()
	defer s.metrics.SubscriberRemoved()
	defer s.hub.Leave(client)

	s.logger.Info("subscriber connected", "family_id", id, "client_id", client.ID())
	client.Serve(r.Context())
	s.logger.Info("subscriber disconnected", "family_id", id, "client_id", client.ID())
}

func (s *Server) register(client *hubws.Client, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.docs.Get(id)
	if err != nil {
		return err
	}
	s.hub.Join(client)
	if doc == nil {
		return nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		s.hub.Leave(client)
		return err
	}
	client.Enqueue(data)
	return nil
}

func familyID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" || len(id) > maxFamilyIDLen {
		writeError(w, http.StatusBadRequest, "invalid family id")
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
