// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
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

	"github.com/tbourn/go-skill-gateway/internal/config"
	"github.com/tbourn/go-skill-gateway/internal/http/handlers"
	"github.com/tbourn/go-skill-gateway/internal/http/middleware"
	"github.com/tbourn/go-skill-gateway/internal/llm"
	"github.com/tbourn/go-skill-gateway/internal/rag"
	"github.com/tbourn/go-skill-gateway/internal/repo"
	"github.com/tbourn/go-skill-gateway/internal/router"
	"github.com/tbourn/go-skill-gateway/internal/services"
	"github.com/tbourn/go-skill-gateway/internal/skills"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, compression, CORS and security headers, health and metrics
// endpoints, and then mounts the public API under the configured base path.
//
// The skill registry is constructed by the caller and injected here, keeping
// startup order explicit.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip compression
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, registry *skills.Registry, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-User-Email", // caller identity; never logged in clear
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Compress responses (skill results and usage listings compress well)
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, identity, route, key string, now time.Time) (bool, error) {
			if identity == "" {
				return false, nil
			}
			u, err := repo.GetUserByEmail(ctx, db, identity)
			if err != nil || u == nil {
				return false, nil
			}
			rec, err := repo.GetIdempotency(ctx, db, u.ID, route, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	exposeHeaders := []string{
		"X-Request-ID", "X-Credits-Used", "X-Credits-Balance",
		"ETag", "Content-Length",
	}
	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		"X-User-Email", middleware.HeaderIdempotencyKey, "If-None-Match",
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
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
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
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
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← clients/db/registry
	llmClient := llm.NewClient(llm.Config{
		URL:    cfg.Local.LLMURL,
		APIKey: cfg.Local.APIKey,
	}, nil)

	reranker := rag.NewReranker(rag.Config{
		RerankURL:      cfg.Local.RerankURL,
		RerankModel:    cfg.Local.RerankModel,
		EmbedURL:       cfg.Local.EmbedURL,
		EmbedModel:     cfg.Local.EmbedModel,
		APIKey:         cfg.Local.APIKey,
		EmbedBatchSize: cfg.EmbedBatchSize,
	}, nil)

	askSvc := &services.AskService{
		LLM:      llmClient,
		Reranker: reranker,
		Registry: registry,
		Presets: router.Presets{
			FastModel:    cfg.Local.FastModel,
			QualityModel: cfg.Local.QualityModel,
		},
		AllowProviders: cfg.AllowProviders,
		TopK:           cfg.RAGTopK,
	}
	billSvc := &services.BillingService{
		DB: db,
		Pricing: services.Pricing{
			PriceInPer1K:  cfg.Billing.PriceInPer1K,
			PriceOutPer1K: cfg.Billing.PriceOutPer1K,
		},
		HardStopBelow: cfg.Billing.HardStopBelow,
	}
	h := handlers.New(askSvc, billSvc, registry, db)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/si"
	api := groupWithPrefix(r, apiBase)
	{
		// Ask (raw and billed skill requests share one endpoint)
		api.POST("/ask", h.Ask)

		// Skill catalog
		api.GET("/skills", h.ListSkills)

		// Credits
		api.GET("/credits/balance", h.GetBalance)
		api.POST("/credits/topup", h.TopUp)
		api.GET("/credits/history", h.ListCreditHistory)
		api.GET("/usage", h.ListUsage)
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
