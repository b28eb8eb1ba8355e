package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kubeadapt/kueue-observer/internal/observability"
	"github.com/kubeadapt/kueue-observer/pkg/model"
)

// ReadinessChecker reports whether the observer is ready to serve traffic.
type ReadinessChecker interface {
	IsReady() bool
}

// SnapshotProvider returns the latest observer snapshot for debugging.
type SnapshotProvider interface {
	LatestSnapshot() *model.ObserverSnapshot
}

// QueryStats returns the state of every running query for debugging.
type QueryStats interface {
	QueryStates() map[string]string
}

// CacheStats reports the number of slots held by each enrichment cache.
type CacheStats interface {
	CacheSizes() map[string]int
}

// Server exposes health, readiness, metrics, and debug endpoints.
type Server struct {
	httpServer *http.Server
	metrics    *observability.Metrics
	readiness  ReadinessChecker
	snapshot   SnapshotProvider
	queries    QueryStats
	caches     CacheStats
	listener   net.Listener
}

// NewServer creates a new health server on the given port.
// Pass port=0 to let the OS pick a free port (useful for tests).
// When enableDebug is true, pprof and debug endpoints are registered.
// caches may be nil.
func NewServer(port int, metrics *observability.Metrics, readiness ReadinessChecker, snapshot SnapshotProvider, queries QueryStats, caches CacheStats, enableDebug bool) *Server {
	s := &Server{
		metrics:   metrics,
		readiness: readiness,
		snapshot:  snapshot,
		queries:   queries,
		caches:    caches,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	if enableDebug {
		// pprof handlers, only enabled when KUEUE_OBSERVER_DEBUG_ENDPOINTS=true
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		// debug endpoints
		mux.HandleFunc("/debug/snapshot", s.handleDebugSnapshot)
		mux.HandleFunc("/debug/queries", s.handleDebugQueries)
	}

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", port),
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return s
}

// Start begins listening and serving HTTP in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("health server listen: %w", err)
	}
	s.listener = ln
	// Update Addr to the actual address (important when port=0).
	s.httpServer.Addr = ln.Addr().String()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("health server exited", "error", err)
		}
	}()
	return nil
}

// Addr returns the listen address. After Start it holds the bound address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ready := s.readiness.IsReady()
	if ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ready": ready})
}

func (s *Server) handleDebugSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := s.snapshot.LatestSnapshot()
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(snap)
}

// queryDebug is the /debug/queries payload. ActiveErrors comes from the
// latest snapshot and is empty before the first one.
type queryDebug struct {
	Queries      map[string]string `json:"queries"`
	Caches       map[string]int    `json:"caches,omitempty"`
	ActiveErrors []string          `json:"active_errors"`
}

func (s *Server) handleDebugQueries(w http.ResponseWriter, _ *http.Request) {
	out := queryDebug{
		Queries:      s.queries.QueryStates(),
		ActiveErrors: []string{},
	}
	if s.caches != nil {
		out.Caches = s.caches.CacheSizes()
	}
	if snap := s.snapshot.LatestSnapshot(); snap != nil && snap.Health.ActiveErrors != nil {
		out.ActiveErrors = snap.Health.ActiveErrors
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(out)
}
