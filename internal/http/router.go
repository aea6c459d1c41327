// Package httpapi wires the HTTP transport (Gin) to the ingestion service,
// middleware, and route handlers. It centralizes cross-cutting concerns:
// tracing, correlation IDs, logging, panic recovery, metrics, CORS, security
// headers, and rate limiting.
//
// Middleware ordering is safe-by-default (RequestID → logging → recovery) and
// all dependencies are injected.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/obi-nwosu/fieldsync/internal/config"
	"github.com/obi-nwosu/fieldsync/internal/http/handlers"
	"github.com/obi-nwosu/fieldsync/internal/http/middleware"
	"github.com/obi-nwosu/fieldsync/internal/ingest"
)

// ingestShim adapts the ingestion service to the narrow handlers.Ingestor
// interface and feeds the processing result into the domain metrics.
type ingestShim struct {
	svc *ingest.Service
}

func (s ingestShim) ProcessSubmission(ctx context.Context, id string) error {
	res, err := s.svc.ProcessSubmission(ctx, id)
	if err != nil {
		return err
	}
	if !res.Skipped && !res.Returning {
		middleware.ObserveRespondentCreated(string(res.Provenance))
	}
	return nil
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine: observability (tracing, metrics), rate limiting, CORS and security
// headers, health and metrics endpoints, and the versioned ingestion API.
//
// Middleware order:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Response compression
//  6. Body size limiter
//  7. Metrics
//  8. Rate limiter (per user/IP)
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, svc *ingest.Service, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Response compression (form schemas are large and repetitive)
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 6) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(db, ingestShim{svc: svc})

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/submissions", h.CreateSubmission)
		api.POST("/submissions/status", h.SubmissionStatus)
		api.GET("/forms/:id", h.GetForm)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
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
