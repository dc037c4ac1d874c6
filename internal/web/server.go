package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/surfvision/camtuner/internal/camera"
	"github.com/surfvision/camtuner/internal/config"
	"github.com/surfvision/camtuner/internal/health"
	"github.com/surfvision/camtuner/internal/logger"
	"github.com/surfvision/camtuner/internal/service"
	"github.com/surfvision/camtuner/internal/state"
	"github.com/surfvision/camtuner/internal/storage"
	"github.com/surfvision/camtuner/internal/telemetry"
)

// Server exposes the local operator API
type Server struct {
	*service.ServiceBase
	config     config.WebConfig
	router     *gin.Engine
	httpServer *http.Server

	collector   *telemetry.Collector
	controllers map[string]*camera.Controller
	states      *state.Manager
	store       *storage.SnapshotStore
	checks      *health.Registry
	manager     *service.Manager
	version     string
}

// Deps bundles what the API serves from
type Deps struct {
	Collector   *telemetry.Collector
	Controllers map[string]*camera.Controller
	States      *state.Manager
	Store       *storage.SnapshotStore
	Checks      *health.Registry
	Manager     *service.Manager
}

// NewServer creates the web server service
func NewServer(cfg config.WebConfig, deps Deps, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	s := &Server{
		ServiceBase: service.NewServiceBase("web-server", log),
		config:      cfg,
		router:      router,
		collector:   deps.Collector,
		controllers: deps.Controllers,
		states:      deps.States,
		store:       deps.Store,
		checks:      deps.Checks,
		manager:     deps.Manager,
		version:     "dev",
	}
	s.setupRoutes()
	return s
}

// SetVersion sets the version reported by the status endpoint
func (s *Server) SetVersion(version string) {
	s.version = version
}

// Router returns the gin engine, for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start starts the HTTP listener
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.LogInfo("Web server is disabled")
		s.GetStatus().SetStatus(service.StatusRunning)
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.LogError("Web server error", err, "address", addr)
			s.GetStatus().SetError(err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
		s.GetStatus().SetStatus(service.StatusRunning)
		s.LogInfo("Web server started", "address", addr)
		return nil
	}
}

// Stop shuts the HTTP listener down
func (s *Server) Stop(ctx context.Context) error {
	s.GetStatus().SetStatus(service.StatusStopping)
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("web server shutdown: %w", err)
		}
	}
	s.GetStatus().SetStatus(service.StatusStopped)
	s.LogInfo("Web server stopped")
	return nil
}

func ginLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", latency,
			"client_ip", c.ClientIP(),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
