// Package server exposes the latest observer snapshot over a read-only HTTP
// API and a websocket stream.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kubeadapt/kueue-observer/internal/observability"
	"github.com/kubeadapt/kueue-observer/pkg/model"
)

// SnapshotSource provides the latest snapshot and a stream of new ones.
// *observer.Observer implements it.
type SnapshotSource interface {
	LatestSnapshot() *model.ObserverSnapshot
	Subscribe() (<-chan *model.ObserverSnapshot, func())
}

// Options configures a Server.
type Options struct {
	Port           int
	AllowedOrigins []string
	// WriteTimeout bounds each websocket message write.
	WriteTimeout time.Duration
}

// Server serves the view API.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	source     SnapshotSource
	metrics    *observability.Metrics
	upgrader   websocket.Upgrader
	opts       Options

	// mu orders stream registration against Stop.
	mu      sync.Mutex
	stopped bool
	done    chan struct{}
	streams sync.WaitGroup
}

// NewServer creates a Server. Pass Port=0 to let the OS pick a free port.
func NewServer(source SnapshotSource, metrics *observability.Metrics, opts Options) (*Server, error) {
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	allowed := cleanOrigins(opts.AllowedOrigins)
	corsConfig, err := ConfigureCORS(allowed)
	if err != nil {
		return nil, fmt.Errorf("error setting up CORS: %w", err)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig))
	if err := r.SetTrustedProxies(nil); err != nil {
		return nil, fmt.Errorf("error setting trusted proxies: %w", err)
	}

	checkOrigin := originChecker(allowed)
	s := &Server{
		engine:  r,
		source:  source,
		metrics: metrics,
		opts:    opts,
		done:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(req *http.Request) bool {
				return checkOrigin(req.Header.Get("Origin"))
			},
		},
	}
	s.routes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s, nil
}

func (s *Server) routes() {
	api := s.engine.Group("/api/v1")
	api.GET("/snapshot", s.handleSnapshot)
	api.GET("/topology", s.handleTopology)
	api.GET("/queues/:namespace/:name", s.handleQueue)

	s.engine.GET("/ws/snapshot", s.handleSnapshotStream)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Addr returns the listen address. After Start it holds the bound address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Start begins listening and serving HTTP in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server listen: %w", err)
	}
	// Update Addr to the actual address (important when port=0).
	s.httpServer.Addr = ln.Addr().String()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("view server exited", "error", err)
		}
	}()
	return nil
}

// Stop ends open websocket streams and gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.done)
	}
	s.mu.Unlock()

	err := s.httpServer.Shutdown(ctx)
	s.streams.Wait()
	return err
}

// beginStream registers a stream. It returns false once Stop has begun.
func (s *Server) beginStream() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.streams.Add(1)
	return true
}

func (s *Server) handleSnapshot(c *gin.Context) {
	snap := s.source.LatestSnapshot()
	if snap == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleTopology(c *gin.Context) {
	snap := s.source.LatestSnapshot()
	if snap == nil || snap.Topology == nil {
		state := "pending"
		if snap != nil {
			state = snap.Health.QueueListState
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "local queue list not ready",
			"state": state,
		})
		return
	}
	c.JSON(http.StatusOK, snap.Topology)
}

func (s *Server) handleQueue(c *gin.Context) {
	snap := s.source.LatestSnapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no snapshot built yet"})
		return
	}
	namespace, name := c.Param("namespace"), c.Param("name")
	view := snap.Queue(namespace, name)
	if view == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("local queue %s/%s not found", namespace, name)})
		return
	}
	c.JSON(http.StatusOK, view)
}
