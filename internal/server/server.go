// Package server exposes a devtools session over HTTP: graph polling,
// analysis, time-travel queries, a websocket event stream and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AnatoleLucet/sigscope/internal/patterns"
	"github.com/AnatoleLucet/sigscope/internal/timetravel"
	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

// Source is the session being served.
type Source interface {
	Nodes() []tracker.Node
	Edges() []tracker.Edge
	Events() []tracker.Event
	Subscribe(fn func(tracker.Event)) func()
	Analyze(ctx context.Context) patterns.AnalysisResult
	ReconstructAt(ts time.Time) timetravel.GraphState
	CacheStats() timetravel.CacheStats
}

type Server struct {
	source   Source
	engine   *gin.Engine
	upgrader websocket.Upgrader
	logger   *slog.Logger

	// events buffered per websocket client before it is dropped
	streamBuffer int
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithStreamBuffer sets how many events a slow websocket client may lag
// behind before it is disconnected.
func WithStreamBuffer(n int) Option {
	return func(s *Server) { s.streamBuffer = n }
}

func New(source Source, opts ...Option) *Server {
	s := &Server{
		source: source,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:       slog.Default(),
		streamBuffer: 256,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.logRequests)
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	api.GET("/nodes", s.handleNodes)
	api.GET("/edges", s.handleEdges)
	api.GET("/events", s.handleEvents)
	api.GET("/patterns", s.handlePatterns)
	api.GET("/replay", s.handleReplay)
	api.GET("/cache", s.handleCache)

	s.engine.GET("/ws", s.handleStream)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("serving devtools", "addr", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration", time.Since(start),
	)
}
