// Package server exposes fetch progress and process health over HTTP so
// a presentation layer can poll status without blocking on the fetch.
package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/gridwatch/psefetch/internal/api"
)

// Snapshot is the progress state published on /status.
type Snapshot struct {
	RunID     string     `json:"run_id"`
	State     string     `json:"state"`
	Pages     int        `json:"pages"`
	Records   int        `json:"records"`
	Progress  float64    `json:"progress"`
	Earliest  *time.Time `json:"earliest,omitempty"`
	Latest    *time.Time `json:"latest,omitempty"`
	Partial   bool       `json:"partial"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Board holds the most recent progress snapshot. Updates come from the
// fetch goroutine, reads from HTTP handlers, so access is guarded.
type Board struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewBoard() *Board {
	return &Board{}
}

// Observe converts a walker progress notification into the published
// snapshot. Suitable for use as the walker's progress callback.
func (b *Board) Observe(p api.Progress) {
	snap := Snapshot{
		RunID:     p.RunID,
		State:     p.State.String(),
		Pages:     p.Page,
		Records:   p.Records,
		Progress:  p.Fraction,
		Partial:   p.Partial,
		UpdatedAt: time.Now().UTC(),
	}
	if !p.Earliest.IsZero() {
		earliest := p.Earliest
		snap.Earliest = &earliest
	}
	if !p.Latest.IsZero() {
		latest := p.Latest
		snap.Latest = &latest
	}

	b.mu.Lock()
	b.snap = snap
	b.mu.Unlock()
}

// Current returns the latest snapshot.
func (b *Board) Current() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap
}

// Server serves /healthz, /status and /metrics.
type Server struct {
	board    *Board
	logger   *logrus.Logger
	registry *prometheus.Registry
}

// New creates the status server and registers the fetch metrics on a
// dedicated registry.
func New(board *Board, logger *logrus.Logger) *Server {
	registry := prometheus.NewRegistry()
	api.RegisterMetrics(registry)
	return &Server{board: board, logger: logger, registry: registry}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(s.board.Current()); err != nil {
		s.logger.WithError(err).Warn("Failed to write status response")
	}
}
