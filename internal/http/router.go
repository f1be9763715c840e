// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, API keys, idempotency and rate
// limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/qris-donation-backend/internal/config"
	"github.com/tbourn/qris-donation-backend/internal/events"
	"github.com/tbourn/qris-donation-backend/internal/http/handlers"
	"github.com/tbourn/qris-donation-backend/internal/http/middleware"
	"github.com/tbourn/qris-donation-backend/internal/repo"
	"github.com/tbourn/qris-donation-backend/internal/services"
	"github.com/tbourn/qris-donation-backend/internal/state"
)

// startedAt anchors the uptime reported by /health.
var startedAt = time.Now()

// idempotencyShim adapts the repository free functions to
// handlers.IdempotencyStore.
type idempotencyShim struct {
	db  *gorm.DB
	ttl time.Duration
}

// Lookup proxies repo.GetIdempotency.
func (s idempotencyShim) Lookup(ctx context.Context, deviceID, key string, now time.Time) (int64, bool) {
	rec, err := repo.GetIdempotency(ctx, s.db, deviceID, key, now)
	if err != nil || rec == nil {
		return 0, false
	}
	return rec.NotificationID, true
}

// Remember proxies repo.CreateIdempotency. A concurrent duplicate is not an
// error: the first writer's record stands.
func (s idempotencyShim) Remember(ctx context.Context, deviceID, key string, id int64, status int) error {
	_, err := repo.CreateIdempotency(ctx, s.db, deviceID, key, id, status, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and returns the handler set.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip (the websocket path is excluded)
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per device/IP, bypass on replay)
//  10. CORS and Security headers
//
// The API key guards ingestion, admin reads and QRIS settings. The donation
// feed, the QRIS donor flow, /health and /metrics stay public.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, store *state.Store, hub *events.Hub, cfg config.Config) *handlers.Handlers {
	r.HandleMethodNotAllowed = true

	apiBase := cfg.APIBasePath
	livePath := joinPath(apiBase, "/donations/live")

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderDeviceID},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{livePath})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, deviceID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, deviceID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByDeviceOrIP())
	r.Use(rl.Handler())

	useCORS(r, cfg.CORS.AllowedOrigins)

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "Endpoint not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "OK",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"uptime":    time.Since(startedAt).Seconds(),
		})
	})

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← db/store/hub
	san := services.NewSanitizer()
	notifSvc := &services.NotificationService{DB: db}
	donationSvc := &services.DonationService{DB: db, Sanitizer: san}
	qrisSvc := &services.QRISService{
		Store:      store,
		MinAmount:  cfg.QRIS.MinDonation,
		SessionTTL: cfg.QRIS.SessionTTL,
		Sanitizer:  san,
	}
	if hub != nil {
		qrisSvc.Events = hub
	}

	h := handlers.New(notifSvc, donationSvc, qrisSvc)
	h.Idem = idempotencyShim{db: db, ttl: cfg.IdempotencyTTL}
	if hub != nil {
		h.Stream = hub
	}

	auth := middleware.APIKey(cfg.APIKey)

	// Device listener and operators
	private := r.Group("", auth)
	{
		private.POST("/webhook", h.Webhook)
		private.POST("/test", h.TestEcho)
		private.GET("/notifications", h.ListNotifications)
		private.GET("/devices", h.ListDevices)
		private.GET("/stats", h.Stats)
	}

	// Donation feed (overlay and matcher)
	r.GET("/public/donations", h.ListDonations)
	r.PUT("/public/donations", h.SaveDonationMetadata)

	// Donation client API
	api := groupWithPrefix(r, apiBase)
	{
		api.GET("/qris/settings", auth, h.GetSettings)
		api.PUT("/qris/settings", auth, h.UpdateSettings)
		api.POST("/qris/generate", h.Generate)
		api.GET("/qris/session", h.GetSession)
		api.DELETE("/qris/session", h.ClearSession)
		api.GET("/qris/presets", h.Presets)
		api.GET("/donations/live", h.Live)
	}
	return h
}

// useCORS installs the CORS posture: allow all when no origins are
// configured, otherwise echo allowlisted origins.
func useCORS(r *gin.Engine, origins []string) {
	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		middleware.HeaderAPIKey, middleware.HeaderDeviceID, middleware.HeaderIdempotencyKey,
	}
	methods := []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}

	if len(origins) == 0 {
		// ACAO: * even without an Origin header (plain health checks, overlays).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     methods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Idempotency-Replayed"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
		return
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	})
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     methods,
		AllowHeaders:     allowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Idempotency-Replayed"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
}

// limitBody caps the request body at maxBytes; larger bodies fail on read.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// joinPath joins a normalized base path and a route.
func joinPath(base, route string) string {
	if base == "" || base == "/" {
		return route
	}
	return base + route
}
