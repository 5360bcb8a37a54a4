// internal/server/router.go - view bridge routes and HTTP server
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"telemetry-dashboard/internal/config"
	"telemetry-dashboard/internal/handler"
	"telemetry-dashboard/pkg/logger"
	"telemetry-dashboard/pkg/response"
)

const APIPrefix = "/api/v1"

// Handlers groups everything the router mounts.
type Handlers struct {
	View      *handler.ViewHandler
	Search    *handler.SearchHandler
	Navigator *handler.NavigatorHandler
	Share     *handler.ShareHandler
	Refresh   handler.Trigger
	// Metrics serves /metrics; nil leaves the route out.
	Metrics http.Handler
}

// Server is the loopback view bridge.
type Server interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
	Handler() http.Handler
}

func NewServer(h Handlers, cfg config.ConfigServer, logger logger.Logger) Server {
	s := &server{handlers: h, cfg: cfg, logger: logger}
	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.HandleMethodNotAllowed = true
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

type server struct {
	engine   *gin.Engine
	handlers Handlers
	cfg      config.ConfigServer
	logger   logger.Logger

	mu         sync.Mutex
	httpServer *http.Server
	closed     bool
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *server) Start(addr string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("starting view bridge on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("shutting down view bridge")
	return srv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *server) Handler() http.Handler {
	return s.engine
}

func (s *server) setupMiddleware() {
	s.engine.Use(RecoveryMiddleware(s.logger))
	s.engine.Use(LoggingMiddleware(s.logger))
	s.engine.Use(CORSMiddleware(s.cfg.CORSOrigin))
	s.engine.Use(SecurityMiddleware())
	s.engine.Use(RateLimitMiddleware(s.cfg, s.logger))
}

func (s *server) setupRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		response.OkJson(c, gin.H{"time": time.Now().Format(time.RFC3339)})
	})
	if s.handlers.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.handlers.Metrics))
	}

	api := s.engine.Group(APIPrefix)
	if v := s.handlers.View; v != nil {
		api.GET("/summary", v.Summary)
		api.GET("/workspaces", v.Workspaces)
		api.GET("/timeline", v.Timeline)
		api.GET("/hotspots", v.Hotspots)
		api.GET("/correlation", v.Correlation)
		api.GET("/context-usage", v.ContextUsage)
		api.GET("/models", v.Models)
		api.GET("/context-trend", v.ContextTrend)
		api.GET("/branches", v.Branches)
	}
	if sh := s.handlers.Search; sh != nil {
		api.GET("/search", sh.Search)
		api.GET("/search/suggest", sh.Suggest)
		api.GET("/search/history", sh.History)
		api.POST("/search/click", sh.Click)
	}
	if n := s.handlers.Navigator; n != nil {
		api.GET("/navigator", n.State)
	}
	if sh := s.handlers.Share; sh != nil {
		api.POST("/share/preview", sh.Preview)
		api.POST("/share", sh.Create)
	}
	if s.handlers.Refresh != nil {
		api.POST("/refresh", handler.Refresh(s.handlers.Refresh))
	}

	s.engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, "not_found", "endpoint not found")
	})
	s.engine.NoMethod(func(c *gin.Context) {
		response.Fail(c, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
}
