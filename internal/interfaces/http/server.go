// Package http is the gin adapter over the workflow engine and the
// application services.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/application/service"
	"github.com/garyjia/justifi/internal/application/workflow"
	"github.com/garyjia/justifi/internal/container"
	"github.com/garyjia/justifi/internal/infrastructure/metrics"
	"github.com/garyjia/justifi/pkg/utils"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// HealthChecker reports component health for /health/ready
type HealthChecker interface {
	Health(ctx context.Context) *container.HealthStatus
}

// Dependencies are the application components the handlers call.
// Metrics and Health may be nil.
type Dependencies struct {
	Engine    workflow.Engine
	Query     service.QueryService
	Rules     service.RuleService
	Types     service.TypeService
	Templates service.TemplateService
	Users     service.UserService
	Exporter  port.Exporter
	Health    HealthChecker
	Metrics   *metrics.Metrics
	Version   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimit       RateLimitConfig
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RateLimit:       RateLimitConfig{Enabled: true, RPS: 10, Burst: 20},
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	deps       Dependencies
	logger     *zap.Logger
}

// NewServer creates a new HTTP server with routes and middleware installed
func NewServer(config ServerConfig, deps Dependencies, logger *zap.Logger) *Server {
	s := &Server{
		config: config,
		router: gin.New(),
		deps:   deps,
		logger: logger,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(loggingMiddleware(s.logger))
	s.router.Use(corsMiddleware())
	if s.deps.Metrics != nil {
		s.router.Use(s.deps.Metrics.Middleware())
	}
}

func (s *Server) setupRoutes() {
	h := NewHandlers(s.deps, utils.NewKVLogger(s.logger))

	s.router.GET("/health", h.HealthCheck)
	s.router.GET("/health/ready", h.ReadyCheck)
	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	// mutating routes share one per-client budget
	limited := []gin.HandlerFunc{}
	if s.config.RateLimit.Enabled {
		limited = append(limited, rateLimitMiddleware(newIPRateLimiter(s.config.RateLimit.RPS, s.config.RateLimit.Burst)))
	}
	write := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, limited...), handler)
	}

	api := s.router.Group("/api")
	{
		api.POST("/justifications", write(h.Submit)...)
		api.GET("/justifications", h.ListJustifications)
		api.GET("/justifications/:id", h.GetJustification)
		api.GET("/justifications/:id/export", h.ExportJustification)
		api.POST("/justifications/:id/resubmit", write(h.Resubmit)...)
		api.POST("/justifications/:id/cancel", write(h.Cancel)...)
		api.POST("/justifications/:id/comments", write(h.AddComment)...)

		api.GET("/inbox", h.Inbox)

		api.POST("/approvals/:task_id/approve", write(h.Approve)...)
		api.POST("/approvals/:task_id/reject", write(h.Reject)...)
		api.POST("/approvals/:task_id/request-info", write(h.RequestInfo)...)

		api.GET("/rules", h.ListRules)
		api.POST("/rules", write(h.CreateRule)...)
		api.GET("/rules/:id", h.GetRule)
		api.PUT("/rules/:id", write(h.UpdateRule)...)

		api.GET("/types", h.ListTypes)
		api.POST("/types", write(h.CreateType)...)
		api.GET("/types/:code", h.GetType)

		api.GET("/templates", h.ListTemplates)
		api.GET("/templates/:key", h.GetTemplate)
		api.PUT("/templates/:key", write(h.PutTemplate)...)
		api.DELETE("/templates/:key", write(h.DeleteTemplate)...)

		api.GET("/users", h.ListUsers)
		api.GET("/users/:email", h.GetUser)
		api.PUT("/users/:email", write(h.PutUser)...)
		api.DELETE("/users/:email", write(h.DeleteUser)...)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
