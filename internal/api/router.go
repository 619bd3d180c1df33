package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nebari-dev/docshelf/internal/api/handlers"
	"github.com/nebari-dev/docshelf/internal/api/middleware"
	"github.com/nebari-dev/docshelf/internal/auth"
	"github.com/nebari-dev/docshelf/internal/config"
	"github.com/nebari-dev/docshelf/internal/ingestion"
	"github.com/nebari-dev/docshelf/internal/metrics"
	"github.com/nebari-dev/docshelf/internal/rbac"
	"github.com/nebari-dev/docshelf/internal/service"
	"github.com/nebari-dev/docshelf/internal/store"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// requestIDHeader carries the per-request correlation id.
const requestIDHeader = "X-Request-ID"

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Config    *config.Config
	Tokens    *auth.TokenManager
	Gate      *rbac.Gate
	UserStore store.UserStore // reloads the token's user on every protected request
	Auth      *service.AuthService
	Users     *service.UserService
	Documents *service.DocumentService
	Ingestion *ingestion.Client
	Metrics   *metrics.Metrics // optional
}

// NewRouter creates and configures the Gin router
func NewRouter(d Deps) *gin.Engine {
	// Set Gin mode
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = d.Config.Storage.MaxUploadMB << 20

	// Middleware
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware())
	router.Use(corsMiddleware())
	if d.Metrics != nil {
		router.Use(metricsMiddleware(d.Metrics))
	}

	authHandler := handlers.NewAuthHandler(d.Auth)
	userHandler := handlers.NewUserHandler(d.Users)
	docHandler := handlers.NewDocumentHandler(d.Documents, d.Config.Storage.MaxUploadMB)
	ingestionHandler := handlers.NewIngestionHandler(d.Ingestion)

	// Public routes
	router.GET("/health", handlers.HealthCheck)
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if d.Metrics != nil && d.Config.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)
	router.POST("/ingestion/trigger", ingestionHandler.Trigger)

	// Protected routes (require authentication, then the route's roles)
	protected := router.Group("/")
	protected.Use(middleware.Authenticate(d.Tokens, d.UserStore))
	protected.Use(middleware.RequireRoles(d.Gate, d.Metrics))
	{
		protected.GET("/auth/me", authHandler.Me)

		// User endpoints
		protected.GET("/users", userHandler.ListUsers)
		protected.POST("/users", userHandler.CreateUser)
		protected.GET("/users/:id", userHandler.GetUser)
		protected.PATCH("/users/:id", userHandler.UpdateUser)
		protected.DELETE("/users/:id", userHandler.DeleteUser)

		// Document endpoints
		protected.POST("/documents", docHandler.CreateDocument)
		protected.GET("/documents", docHandler.ListDocuments)
		protected.GET("/documents/:id", docHandler.GetDocument)
		protected.PUT("/documents/:id", docHandler.UpdateDocument)
		protected.DELETE("/documents/:id", docHandler.DeleteDocument)
	}

	slog.Info("API router initialized", "mode", d.Config.Server.Mode)
	return router
}

// requestIDMiddleware propagates or assigns a request id.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		slog.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"ip", c.ClientIP(),
			"request_id", c.GetString("request_id"),
		)
	}
}

// metricsMiddleware records request counts and latencies per route pattern.
func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
