package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zclconf/go-cty/cty"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/flow"
	"github.com/eyevinn-osaas/strom-sub001/internal/lifecycle"
)

// Flow is the part of a flow instance the API drives.
type Flow interface {
	Diagnostics() flow.Diagnostics
	GetProperty(ctx context.Context, target, name string) (cty.Value, error)
	UpdateProperty(ctx context.Context, target, name string, value any) error
	Controls() []string
	Control(ctx context.Context, name string) (bool, error)
	SetControl(ctx context.Context, name string, on bool) error
	SetState(ctx context.Context, s lifecycle.State) error
}

// Server represents the API server.
type Server struct {
	router   *gin.Engine
	flow     Flow
	gatherer prometheus.Gatherer
	srv      *http.Server
}

// NewServer creates a new API server for f. Metrics are served from
// gatherer when it is not nil.
func NewServer(ctx context.Context, f Flow, gatherer prometheus.Gatherer) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(ctx))

	s := &Server{router: router, flow: f, gatherer: gatherer}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	if s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/diagnostics", s.diagnosticsHandler)
		v1.GET("/properties", s.getPropertyHandler)
		v1.PUT("/properties", s.updatePropertyHandler)
		v1.GET("/controls", s.listControlsHandler)
		v1.PUT("/controls/:name", s.setControlHandler)
		v1.PUT("/state", s.setStateHandler)
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr in the background.
func (s *Server) Start(ctx context.Context, addr string) {
	logger := ctxlog.FromContext(ctx)
	s.srv = &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("API server starting.", "address", addr)
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API server failed unexpectedly.", "error", err)
		}
	}()
}

// Shutdown stops the server started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if s.srv == nil {
		logger.Debug("API server was not running.")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	logger.Info("Shutting down API server.")
	if err := s.srv.Shutdown(ctx); err != nil {
		logger.Error("API server shutdown failed.", "error", err)
		return err
	}
	return nil
}

func requestLogger(ctx context.Context) gin.HandlerFunc {
	logger := ctxlog.FromContext(ctx)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("API request served.",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
