// Package api wires together all HTTP routes for the training registry backend.
//
// Route grouping:
//   - Public reads (training detail, certificate verification, uploaded
//     files) need no credentials. The training list resolves an optional
//     principal so partners and admins see more than the approved set.
//   - Registration and login sit behind the strict auth rate limit.
//   - Everything else requires a session token; admin-only routes add a
//     role check, and ownership is decided by the workflow services.
//
// Uploaded files are served under /api/files with a sandboxing CSP so a
// hostile upload cannot script against the API origin.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/disaster-training/training-registry/internal/api/accounts"
	"github.com/disaster-training/training-registry/internal/api/admin"
	"github.com/disaster-training/training-registry/internal/api/analytics"
	"github.com/disaster-training/training-registry/internal/api/media"
	"github.com/disaster-training/training-registry/internal/api/partners"
	"github.com/disaster-training/training-registry/internal/api/trainings"
	"github.com/disaster-training/training-registry/internal/audit"
	"github.com/disaster-training/training-registry/internal/auth"
	"github.com/disaster-training/training-registry/internal/config"
	"github.com/disaster-training/training-registry/internal/db/repositories"
	"github.com/disaster-training/training-registry/internal/jobs"
	"github.com/disaster-training/training-registry/internal/middleware"
	"github.com/disaster-training/training-registry/internal/services"
	"github.com/disaster-training/training-registry/internal/storage"

	// Import storage backends to register them
	_ "github.com/disaster-training/training-registry/internal/storage/azure"
	_ "github.com/disaster-training/training-registry/internal/storage/gcs"
	_ "github.com/disaster-training/training-registry/internal/storage/local"
	_ "github.com/disaster-training/training-registry/internal/storage/s3"
)

// Version is stamped at build time with -ldflags "-X .../internal/api.Version=..."
var Version = "dev"

// BackgroundServices holds resources that must be released during graceful
// shutdown. The caller (cmd/server) calls Shutdown after the HTTP server has
// drained in-flight requests.
type BackgroundServices struct {
	auditRetention *jobs.AuditRetentionJob
	rateLimiters   []*middleware.RateLimiter
	redisClient    *redis.Client
	shipper        audit.Shipper
}

// Shutdown stops background jobs and limiter sweepers, then flushes audit shippers
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.auditRetention != nil {
		bg.auditRetention.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.redisClient != nil {
		if err := bg.redisClient.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	if bg.shipper != nil {
		if err := bg.shipper.Close(); err != nil {
			slog.Warn("failed to close audit shippers", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// limiters are the three rate limit scopes
type limiters struct {
	auth, general, upload middleware.Limiter
}

// newLimiters shares limits through Redis when a URL is configured and falls
// back to per-process token buckets otherwise
func newLimiters(ctx context.Context, cfg config.RateLimitingConfig, bg *BackgroundServices) (*limiters, error) {
	general := middleware.DefaultRateLimitConfig()
	if cfg.RequestsPerMinute > 0 {
		general.RequestsPerMinute = cfg.RequestsPerMinute
	}
	if cfg.Burst > 0 {
		general.BurstSize = cfg.Burst
	}

	if cfg.RedisURL != "" {
		client, err := middleware.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		bg.redisClient = client
		slog.Info("rate limits shared through redis")
		return &limiters{
			auth:    middleware.NewRedisLimiter(client, "auth", middleware.AuthRateLimitConfig()),
			general: middleware.NewRedisLimiter(client, "general", general),
			upload:  middleware.NewRedisLimiter(client, "upload", middleware.UploadRateLimitConfig()),
		}, nil
	}

	authRL := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
	generalRL := middleware.NewRateLimiter(general)
	uploadRL := middleware.NewRateLimiter(middleware.UploadRateLimitConfig())
	bg.rateLimiters = append(bg.rateLimiters, authRL, generalRL, uploadRL)
	return &limiters{auth: authRL, general: generalRL, upload: uploadRL}, nil
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices, error) {
	bg := &BackgroundServices{}

	storageBackend, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	slog.Info("initialized storage backend", "backend", cfg.Storage.DefaultBackend)

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer, cfg.Server.DevMode)
	if err != nil {
		return nil, nil, err
	}

	shipper, err := audit.NewMultiShipper(cfg.Audit.Shippers)
	if err != nil {
		return nil, nil, err
	}
	bg.shipper = shipper

	var rl *limiters
	if cfg.Security.RateLimiting.Enabled {
		rl, err = newLimiters(context.Background(), cfg.Security.RateLimiting, bg)
		if err != nil {
			bg.Shutdown()
			return nil, nil, err
		}
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	auditRepo := repositories.NewAuditRepository(db)
	sqlxDB := sqlx.NewDb(db, "postgres")
	orgRepo := repositories.NewOrganizationRepository(sqlxDB)
	trainingRepo := repositories.NewTrainingRepository(sqlxDB)
	certRepo := repositories.NewCertificateRepository(sqlxDB)
	analyticsRepo := repositories.NewAnalyticsRepository(sqlxDB)

	// Services
	states := cfg.Analytics.States
	if len(states) == 0 {
		states = config.DefaultStates
	}
	accountSvc := services.NewAccountService(userRepo, orgRepo, tokens, cfg.Auth.BcryptCost)
	partnerSvc := services.NewPartnerService(orgRepo)
	trainingSvc := services.NewTrainingService(trainingRepo)
	certSvc := services.NewCertificateService(certRepo, trainingRepo)
	analyticsSvc := services.NewAnalyticsService(analyticsRepo, states, cfg.Analytics.RecentActivities, cfg.Analytics.LowCoverageDistricts)
	mediaSvc := services.NewMediaService(storageBackend, cfg.Server.BaseURL, cfg.Uploads)
	auditSvc := services.NewAuditLogService(auditRepo)

	if cfg.Audit.RetentionDays > 0 {
		bg.auditRetention = jobs.NewAuditRetentionJob(auditRepo, cfg.Audit.RetentionDays, jobs.DefaultRetentionInterval)
		bg.auditRetention.Start(context.Background())
	}

	// Handlers
	accountH := accounts.NewHandlers(accountSvc)
	trainingH := trainings.NewHandlers(trainingSvc, certSvc)
	partnerH := partners.NewHandlers(partnerSvc)
	analyticsH := analytics.NewHandlers(analyticsSvc)
	mediaH := media.NewHandlers(mediaSvc)
	auditH := admin.NewAuditLogHandlers(auditSvc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Security.CORS))

	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db, storageBackend))
	router.GET("/version", versionHandler())

	limit := func(scope string, l func(*limiters) middleware.Limiter) gin.HandlerFunc {
		if rl == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimitMiddleware(scope, l(rl))
	}
	authLimit := limit("auth", func(l *limiters) middleware.Limiter { return l.auth })
	generalLimit := limit("general", func(l *limiters) middleware.Limiter { return l.general })
	uploadLimit := limit("upload", func(l *limiters) middleware.Limiter { return l.upload })

	requireAuth := middleware.AuthMiddleware(tokens, userRepo)
	optionalAuth := middleware.OptionalAuthMiddleware(tokens, userRepo)
	adminOnly := middleware.RequireRole("admin")
	auditLog := middleware.AuditMiddleware(auditRepo, shipper, cfg.Audit)

	// Uploaded files get a sandboxing policy instead of the API one
	files := router.Group("/api/files")
	files.Use(middleware.SecurityHeadersMiddleware(middleware.MediaSecurityHeadersConfig()))
	files.GET("/*path", mediaH.Serve)

	apiGroup := router.Group("/api")
	apiGroup.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	authGroup := apiGroup.Group("/auth")
	{
		authGroup.POST("/register", authLimit, auditLog, accountH.Register)
		authGroup.POST("/login", authLimit, accountH.Login)
		authGroup.POST("/refresh", generalLimit, requireAuth, accountH.Refresh)
		authGroup.GET("/me", generalLimit, requireAuth, accountH.Me)
	}

	apiGroup.GET("/trainings", generalLimit, optionalAuth, trainingH.List)
	apiGroup.GET("/trainings/:id", generalLimit, trainingH.Get)
	apiGroup.GET("/certificates/:certificateId", generalLimit, trainingH.VerifyCertificate)

	trainingGroup := apiGroup.Group("/trainings")
	trainingGroup.Use(generalLimit, requireAuth, auditLog)
	{
		trainingGroup.POST("", middleware.RequireRole("partner"), trainingH.Create)
		trainingGroup.PUT("/:id", trainingH.Update)
		trainingGroup.PATCH("/:id/status", adminOnly, trainingH.SetStatus)
		trainingGroup.DELETE("/:id", trainingH.Delete)
		trainingGroup.POST("/:id/certificates", trainingH.IssueCertificate)
		trainingGroup.GET("/:id/certificates", trainingH.ListCertificates)
	}

	partnerGroup := apiGroup.Group("/partners")
	partnerGroup.Use(generalLimit, requireAuth, auditLog)
	{
		partnerGroup.GET("", adminOnly, partnerH.List)
		partnerGroup.GET("/:id", partnerH.Get)
		partnerGroup.PATCH("/:id/approve", adminOnly, partnerH.Approve)
		partnerGroup.PATCH("/:id/reject", adminOnly, partnerH.Reject)
	}

	uploadGroup := apiGroup.Group("/upload")
	uploadGroup.Use(uploadLimit, requireAuth, auditLog)
	{
		uploadGroup.POST("/single", mediaH.UploadSingle)
		uploadGroup.POST("/multiple", mediaH.UploadMultiple)
	}

	analyticsGroup := apiGroup.Group("/analytics")
	analyticsGroup.Use(generalLimit, requireAuth)
	{
		analyticsGroup.GET("/dashboard", adminOnly, analyticsH.Dashboard)
		analyticsGroup.GET("/coverage", analyticsH.Coverage)
		analyticsGroup.GET("/gaps", adminOnly, analyticsH.Gaps)
	}

	adminGroup := apiGroup.Group("/admin")
	adminGroup.Use(generalLimit, requireAuth, adminOnly)
	{
		adminGroup.GET("/audit-logs", auditH.List)
		adminGroup.GET("/audit-logs/:id", auditH.Get)
	}

	return router, bg, nil
}

// healthCheckHandler reports liveness
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
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

// readinessHandler also pings the media host, so a readiness gate fails when
// uploads would error
func readinessHandler(db *sql.DB, storageBackend storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := storageBackend.Ping(ctx); err != nil {
			slog.Warn("storage readiness check failed", "error", err)
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

func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware logs one structured record per request. The output format
// follows the global slog handler set up by telemetry.SetupLogger.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.LogAttrs(
			c.Request.Context(),
			level,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", c.GetString(middleware.RequestIDKey)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS for the configured frontend origins
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	methods := strings.Join(cfg.AllowedMethods, ", ")
	if methods == "" {
		methods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed && origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
