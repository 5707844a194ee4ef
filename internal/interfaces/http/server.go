// internal/interfaces/http/server.go
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-sync/internal/config"
	"github.com/your-org/storefront-sync/internal/interfaces/http/middleware"
	"github.com/your-org/storefront-sync/internal/interfaces/http/routes"
	"github.com/your-org/storefront-sync/internal/pkg/auth"
	"github.com/your-org/storefront-sync/internal/session"
)

// HealthCheck reports whether a backing service is reachable
type HealthCheck func() error

// Dependencies are the services the HTTP server is built on
type Dependencies struct {
	Manager *session.Manager
	// Redis backs the rate limiter; nil disables it.
	Redis        *redis.Client
	HealthChecks map[string]HealthCheck
	Logger       *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	deps       Dependencies
	gin        *gin.Engine
	httpServer *http.Server
	logger     *logrus.Entry
	startedAt  time.Time
}

// NewServer creates a new HTTP server instance with its routes registered
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	s := &Server{
		config:    cfg,
		deps:      deps,
		logger:    deps.Logger.WithField("component", "http"),
		startedAt: time.Now(),
	}

	// Set Gin mode based on environment
	switch {
	case cfg.IsProduction():
		gin.SetMode(gin.ReleaseMode)
	case cfg.App.Environment == "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	s.gin = gin.New()
	if err := s.gin.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		s.logger.WithError(err).Warn("Invalid trusted proxies, trusting none")
		_ = s.gin.SetTrustedProxies(nil)
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Server.Port,
		Handler:      s.gin,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	s.logger.Infof("🚀 HTTP Server starting on port %s", s.config.Server.Port)
	s.logger.Infof("🌐 API Base URL: http://localhost:%s/api/v1", s.config.Server.Port)
	s.logger.Infof("📊 Health Check: http://localhost:%s/health", s.config.Server.Port)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("🛑 Shutting down HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("✅ HTTP server stopped gracefully")
	return nil
}

// setupMiddleware configures all middleware for the server
func (s *Server) setupMiddleware() {
	// Recovery middleware - recover from panics
	s.gin.Use(gin.Recovery())

	// Request ID runs first so the access log can carry it
	s.gin.Use(middleware.RequestID())
	s.gin.Use(middleware.Logger(s.logger))

	s.gin.Use(middleware.CORS(s.config))
	s.gin.Use(middleware.SecurityHeaders())
	s.gin.Use(middleware.RateLimit(s.config.Security.RateLimitPerMinute, s.deps.Redis, s.logger))

	// Request size limit middleware
	s.gin.Use(middleware.RequestSizeLimit(1 << 20))
}

// setupRoutes configures all routes for the server
func (s *Server) setupRoutes() {
	// Health check endpoint (no auth required)
	s.gin.GET("/health", s.healthCheck)
	s.gin.GET("/ready", s.readinessCheck)

	apiV1 := s.gin.Group("/api/v1")
	routes.SetupRoutes(apiV1, s.deps.Manager, auth.NewJWTManager(s.config.JWT), s.config, s.logger)

	if s.config.IsDevelopment() {
		s.gin.GET("/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"message":     s.config.App.Name,
				"version":     s.config.App.Version,
				"environment": s.config.App.Environment,
				"health":      "/health",
				"endpoints": gin.H{
					"products": "/api/v1/products",
					"session":  "/api/v1/session",
					"stream":   "/api/v1/session/stream",
					"cart":     "/api/v1/cart",
					"wishlist": "/api/v1/wishlist",
				},
			})
		})
	}
}

// healthCheck handles health check requests
func (s *Server) healthCheck(c *gin.Context) {
	names := make([]string, 0, len(s.deps.HealthChecks))
	for name := range s.deps.HealthChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.deps.HealthChecks[name](); err != nil {
			s.logger.WithError(err).WithField("check", name).Warn("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  name + " check failed",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"version":     s.config.App.Version,
		"environment": s.config.App.Environment,
	})
}

// readinessCheck handles readiness check requests
func (s *Server) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startedAt).String(),
		"sessions":  s.deps.Manager.Count(),
	})
}
