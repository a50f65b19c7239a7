// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"invclose/internal/app"
	"invclose/internal/infrastructure/http/v1/handlers"
	"invclose/internal/infrastructure/http/v1/middleware"
	"invclose/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// DB backs the health probes.
	DB handlers.Database

	// Logger for request logging.
	Logger *logger.Logger

	// JWTValidator validates operator tokens.
	JWTValidator middleware.JWTValidator

	// Services is the wired close engine.
	Services *app.Services

	// CORSOrigins enables CORS for the listed origins when non-empty.
	CORSOrigins []string
}

// NewRouter creates and configures the gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// order matters: errors are rendered before the logger sees the status
	router.Use(middleware.Recovery())
	if len(cfg.CORSOrigins) > 0 {
		router.Use(corsMiddleware(cfg.CORSOrigins))
	}
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.DB)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))

	base := handlers.NewBaseHandler()
	registerProcessRoutes(v1, handlers.NewProcessHandler(
		base,
		cfg.Services.Authority,
		cfg.Services.Recorder,
		cfg.Services.Detector,
		cfg.Services.Reports,
		cfg.Services.Validator,
	))
	registerCloseRoutes(v1.Group("/closes"), handlers.NewCloseHandler(base, cfg.Services.Close))

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.DefaultConfig()
	c.AllowOrigins = origins
	c.AddAllowHeaders("Authorization", middleware.HeaderRequestID, middleware.HeaderTraceID)
	c.AddExposeHeaders(middleware.HeaderRequestID, middleware.HeaderTraceID)
	c.MaxAge = 12 * time.Hour
	return cors.New(c)
}
