// Package server exposes a running monitor over HTTP: JSON endpoints for
// stats and history, start/stop controls, a WebSocket push stream, and
// Prometheus metrics.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/connmon/internal/errors"
	"github.com/rileyhilliard/connmon/internal/logger"
	"github.com/rileyhilliard/connmon/internal/monitor"
	"github.com/rileyhilliard/connmon/internal/transport"
)

const defaultHistoryLimit = 100

// Monitor is the subset of *monitor.Monitor the server drives.
type Monitor interface {
	Start(ctx context.Context, persistent bool) error
	Stop(ctx context.Context)
	State() monitor.State
	Session() transport.Session
	Interval() time.Duration
	Stats() monitor.StatsSnapshot
	ConnectionMetrics() []monitor.ConnectionMetricRecord
	PerformanceSnapshots() []monitor.PerformanceSnapshot
	ErrorLog() []monitor.ErrorRecord
	AddEventHandler(kind monitor.EventKind, h monitor.EventHandler)
}

// Options configures a Server.
type Options struct {
	Addr string
	// AdminToken, when set, must be presented as a bearer token on the
	// start and stop endpoints.
	AdminToken   string
	PushInterval time.Duration
	// Persistent is passed to Monitor.Start by the start endpoint.
	Persistent bool
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  logger.Logger
}

// Server wraps HTTP serving of the API and push stream.
type Server struct {
	httpServer *http.Server
	mon        Monitor
	opts       Options
	log        logger.Logger
	hub        *hub
}

// New creates a configured HTTP server for mon and subscribes the push
// stream to its alerts.
func New(mon Monitor, opts Options) *Server {
	if opts.PushInterval <= 0 {
		opts.PushInterval = time.Second
	}
	log := logger.OrDefault(opts.Logger)

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{Addr: opts.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		mon:        mon,
		opts:       opts,
		log:        log,
		hub:        newHub(log),
	}
	s.registerRoutes(mux)

	mon.AddEventHandler(monitor.EventAlert, func(_ context.Context, ev monitor.Event) error {
		if a, ok := ev.(monitor.AlertRaised); ok {
			s.hub.broadcast(pushMessage{Type: monitor.EventAlert.String(), Data: a.Alert})
		}
		return nil
	})
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run blocks and serves HTTP traffic until Shutdown.
func (s *Server) Run() error {
	s.log.Info("serving on %s", s.opts.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrServer,
			"HTTP server failed",
			"Check that "+s.opts.Addr+" is free, or pick another with --addr")
	}
	return nil
}

// Shutdown stops accepting connections, closes push streams, and waits for
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/start", s.requireAdmin(s.handleStart))
	mux.HandleFunc("POST /api/stop", s.requireAdmin(s.handleStop))
	mux.HandleFunc("GET /ws", s.handleWS)
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}
}

type statusResponse struct {
	State     string  `json:"state"`
	SessionID string  `json:"session_id"`
	Region    string  `json:"region"`
	Interval  float64 `json:"interval"`
	Clients   int     `json:"push_clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	session := s.mon.Session()
	writeJSON(w, http.StatusOK, statusResponse{
		State:     s.mon.State().String(),
		SessionID: session.ID,
		Region:    string(session.Region),
		Interval:  s.mon.Interval().Seconds(),
		Clients:   s.hub.count(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.mon.Stats())
}

type historyResponse struct {
	ConnectionMetrics    []monitor.ConnectionMetricRecord `json:"connection_metrics"`
	PerformanceSnapshots []monitor.PerformanceSnapshot    `json:"performance_snapshots"`
	Errors               []monitor.ErrorRecord            `json:"errors"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultHistoryLimit)
	writeJSON(w, http.StatusOK, historyResponse{
		ConnectionMetrics:    tail(s.mon.ConnectionMetrics(), limit),
		PerformanceSnapshots: tail(s.mon.PerformanceSnapshots(), limit),
		Errors:               tail(s.mon.ErrorLog(), limit),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if state := s.mon.State(); state != monitor.StateIdle {
		writeJSON(w, http.StatusConflict, map[string]string{"status": state.String()})
		return
	}
	if err := s.mon.Start(r.Context(), s.opts.Persistent); err != nil {
		s.log.Warn("start via API failed: %s", errors.Summarize(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"status": "failed", "error": errors.Summarize(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.mon.Stop(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// requireAdmin checks the bearer token when one is configured.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AdminToken == "" {
			next(w, r)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.AdminToken)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="connmon"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseLimit(r *http.Request, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// tail returns the last n items, never nil so JSON renders [].
func tail[T any](items []T, n int) []T {
	if len(items) > n {
		items = items[len(items)-n:]
	}
	if items == nil {
		return []T{}
	}
	return items
}
