// Package api wires together all HTTP routes for the dotfile service.
//
// Route grouping:
//   - /health, /ready, /version are unauthenticated operational endpoints.
//   - /api/v1/auth/* is public but sits behind a strict rate limiter so
//     credential stuffing is throttled before any bcrypt work.
//   - /api/v1/collections/public and per-collection reads use optional auth:
//     anonymous callers see public collections, a token unlocks private ones.
//   - Everything else requires a bearer token; /api/v1/admin/* and the user
//     management surface additionally require the admin tier.
package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	adminapi "github.com/samsonhsy/dot-backend/internal/api/admin"
	"github.com/samsonhsy/dot-backend/internal/api/authapi"
	collectionsapi "github.com/samsonhsy/dot-backend/internal/api/collections"
	licenseapi "github.com/samsonhsy/dot-backend/internal/api/license"
	"github.com/samsonhsy/dot-backend/internal/auth"
	"github.com/samsonhsy/dot-backend/internal/config"
	"github.com/samsonhsy/dot-backend/internal/db/repositories"
	"github.com/samsonhsy/dot-backend/internal/middleware"
	"github.com/samsonhsy/dot-backend/internal/storage"

	// Import storage backends to register them
	_ "github.com/samsonhsy/dot-backend/internal/storage/azure"
	_ "github.com/samsonhsy/dot-backend/internal/storage/gcs"
	_ "github.com/samsonhsy/dot-backend/internal/storage/local"
	_ "github.com/samsonhsy/dot-backend/internal/storage/s3"

	"github.com/samsonhsy/dot-backend/internal/services"
)

// BackgroundServices holds resources with background goroutines that must be
// stopped during graceful shutdown. The caller (cmd/server) calls Shutdown
// after the HTTP server has drained so in-flight requests finish first.
type BackgroundServices struct {
	limiters []middleware.Limiter
}

// Shutdown stops all background goroutines.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, limiter := range bg.limiters {
		limiter.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg *config.Config, database *sql.DB) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()
	logger := slog.Default()

	storageBackend, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	logger.Info("storage backend initialized", "backend", cfg.Storage.DefaultBackend)

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry, cfg.Auth.Issuer)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	sqlxDB := sqlx.NewDb(database, "postgres")
	userRepo := repositories.NewUserRepository(sqlxDB)
	collectionRepo := repositories.NewCollectionRepository(sqlxDB)
	dotfileRepo := repositories.NewDotfileRepository(sqlxDB)
	licenseRepo := repositories.NewLicenseKeyRepository(sqlxDB)

	quota := services.NewQuotaLedger(userRepo, cfg.Quota.FreeTierRetrievalLimit, cfg.Quota.RetrievalPeriodDays, logger)
	userService := services.NewUserService(userRepo, logger)
	licenseRegistry := services.NewLicenseRegistry(licenseRepo, logger)
	collectionService := services.NewCollectionService(collectionRepo, dotfileRepo, storageBackend, quota, logger)

	authHandlers := authapi.NewHandlers(userService, tokens)
	collectionHandlers := collectionsapi.NewHandlers(collectionService)
	licenseHandlers := licenseapi.NewHandlers(licenseRegistry)
	adminHandlers := adminapi.NewHandlers(userService, licenseRegistry)

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeaders(middleware.APISecurityHeadersConfig()))

	router.GET("/health", healthCheckHandler(database))
	router.GET("/ready", readinessHandler(database, storageBackend))
	router.GET("/version", versionHandler())

	bg := &BackgroundServices{}

	// Login and registration always get a strict in-process limiter
	// regardless of the general rate limiting setting.
	authLimiter := middleware.NewLimiter(config.RateLimitingConfig{
		RequestsPerMinute: 10,
		Burst:             5,
	})
	bg.limiters = append(bg.limiters, authLimiter)

	generalLimit := func() gin.HandlerFunc {
		if !cfg.Security.RateLimiting.Enabled {
			return func(c *gin.Context) { c.Next() }
		}
		limiter := middleware.NewLimiter(cfg.Security.RateLimiting)
		bg.limiters = append(bg.limiters, limiter)
		return middleware.RateLimit(limiter, cfg.Security.RateLimiting.RequestsPerMinute)
	}()

	requireAuth := middleware.Auth(tokens, userRepo)
	optionalAuth := middleware.OptionalAuth(tokens, userRepo)

	apiV1 := router.Group("/api/v1")
	apiV1.Use(generalLimit)
	{
		authGroup := apiV1.Group("/auth")
		authGroup.Use(middleware.RateLimit(authLimiter, 10))
		{
			authGroup.POST("/register", authHandlers.Register)
			authGroup.POST("/login", authHandlers.Login)
		}
		apiV1.GET("/auth/me", requireAuth, authHandlers.Me)

		collectionsGroup := apiV1.Group("/collections")
		{
			collectionsGroup.GET("/public", optionalAuth, collectionHandlers.ListPublic)
			collectionsGroup.GET("/:id/dotfiles", optionalAuth, collectionHandlers.ListFiles)

			collectionsGroup.GET("/owned", requireAuth, collectionHandlers.ListOwned)
			collectionsGroup.POST("", requireAuth, collectionHandlers.Create)
			collectionsGroup.POST("/:id/dotfiles", requireAuth, collectionHandlers.AddContent)
			collectionsGroup.GET("/:id/archive", requireAuth, collectionHandlers.Archive)
			collectionsGroup.DELETE("/:id/dotfiles/:filename", requireAuth, collectionHandlers.DeleteFile)
			collectionsGroup.DELETE("/:id", requireAuth, collectionHandlers.Delete)
		}

		apiV1.POST("/license/redeem", requireAuth, licenseHandlers.Redeem)

		usersGroup := apiV1.Group("/users")
		usersGroup.Use(requireAuth, middleware.RequireAdmin())
		{
			usersGroup.GET("", adminHandlers.ListUsers)
			usersGroup.DELETE("/:id", adminHandlers.DeleteUser)
		}

		adminGroup := apiV1.Group("/admin")
		adminGroup.Use(requireAuth, middleware.RequireAdmin())
		{
			adminGroup.GET("/license", adminHandlers.ListLicenseKeys)
			adminGroup.POST("/license", adminHandlers.GenerateLicenseKeys)
			adminGroup.DELETE("/license/:id", adminHandlers.DeleteLicenseKey)
			adminGroup.POST("/promote-user", adminHandlers.PromoteUser)
		}
	}

	return router, bg, nil
}

// healthCheckHandler is the liveness probe: process up, database reachable.
func healthCheckHandler(database *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := database.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler is the readiness probe. Unlike /health it also probes the
// storage backend so a readiness gate fails when uploads and archive
// downloads would error.
func readinessHandler(database *sql.DB, storageBackend storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := database.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if err := storageBackend.Ping(c.Request.Context()); err != nil {
			checks["storage"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "storage backend not ready",
			})
			return
		}
		checks["storage"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware logs every request as a structured slog record. Format
// (json or text) follows the global handler configured in telemetry.SetupLogger.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
		)
	}
}

// CORSMiddleware handles CORS for configured origins.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
