// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the local inference endpoints, provider
// policy, billing, rate limiting, and observability.
package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-skill-gateway/internal/sysutil"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-skill-gateway")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LocalConfig holds the endpoints and model presets for the local inference
// stack. The embeddings URL is derived from the completion URL's origin when
// not set explicitly.
type LocalConfig struct {
	LLMURL       string // LOCAL_LLM_URL, OpenAI-compatible /v1/chat/completions
	EmbedURL     string // LOCAL_EMBED_URL (derived if empty)
	RerankURL    string // LOCAL_RERANK_URL, Cohere-compatible /v1/rerank
	EmbedModel   string // LOCAL_EMBED_MODEL
	RerankModel  string // LOCAL_RERANK_MODEL
	APIKey       string // LOCAL_API_KEY, sent as Authorization: Bearer
	FastModel    string // LOCAL_LLM_FAST
	QualityModel string // LOCAL_LLM_QUALITY
}

// BillingConfig holds the credit metering knobs.
type BillingConfig struct {
	HardStopBelow float64 // HARD_STOP_BELOW: callers below this balance get 402
	PriceInPer1K  float64 // PRICE_IN_PER_1K: credits per 1K prompt tokens
	PriceOutPer1K float64 // PRICE_OUT_PER_1K: credits per 1K completion tokens
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath         string // SQLite path (DATABASE_URL is honored as a fallback)
	AllowProviders string // comma-separated provider allow-list
	EmbedBatchSize int    // embeddings request batch size, clamped to [1,256]
	RAGTopK        int    // documents folded into a skill's context window

	Local   LocalConfig
	Billing BillingConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/si")),

		// App
		DBPath:         sysutil.FirstNonEmpty(os.Getenv("DB_PATH"), os.Getenv("DATABASE_URL"), "app.db"),
		AllowProviders: getenv("ALLOW_PROVIDERS", "local"),
		EmbedBatchSize: getint("EMBED_BATCH_SIZE", 32),
		RAGTopK:        getint("RAG_TOP_K", 4),

		Local: LocalConfig{
			LLMURL:       getenv("LOCAL_LLM_URL", "http://127.0.0.1:8081/v1/chat/completions"),
			EmbedURL:     getenv("LOCAL_EMBED_URL", ""),
			RerankURL:    getenv("LOCAL_RERANK_URL", ""),
			EmbedModel:   getenv("LOCAL_EMBED_MODEL", "bge-m3"),
			RerankModel:  getenv("LOCAL_RERANK_MODEL", "bge-reranker-v2-m3"),
			APIKey:       getenv("LOCAL_API_KEY", ""),
			FastModel:    getenv("LOCAL_LLM_FAST", ""),
			QualityModel: getenv("LOCAL_LLM_QUALITY", ""),
		},

		Billing: BillingConfig{
			HardStopBelow: getfloat("HARD_STOP_BELOW", 0),
			PriceInPer1K:  getfloat("PRICE_IN_PER_1K", 0.2),
			PriceOutPer1K: getfloat("PRICE_OUT_PER_1K", 0.6),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-skill-gateway"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Local.EmbedURL == "" {
		cfg.Local.EmbedURL = DeriveEmbedURL(cfg.Local.LLMURL)
	}
	if cfg.EmbedBatchSize < 1 {
		cfg.EmbedBatchSize = 1
	}
	if cfg.EmbedBatchSize > 256 {
		cfg.EmbedBatchSize = 256
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.AllowProviders) == "" {
		return cfg, errors.New("ALLOW_PROVIDERS must not be empty")
	}
	if strings.TrimSpace(cfg.Local.LLMURL) == "" {
		return cfg, errors.New("LOCAL_LLM_URL must not be empty")
	}
	if cfg.RAGTopK < 1 {
		return cfg, errors.New("RAG_TOP_K must be >= 1")
	}
	if cfg.Billing.PriceInPer1K < 0 || cfg.Billing.PriceOutPer1K < 0 {
		return cfg, errors.New("credit prices must be >= 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// DeriveEmbedURL maps a chat-completions URL to the embeddings endpoint on the
// same origin (scheme + host + "/v1/embeddings"). An unparsable URL is
// returned unchanged so the failure surfaces at request time, not load time.
func DeriveEmbedURL(llmURL string) string {
	u, err := url.Parse(llmURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return llmURL
	}
	return u.Scheme + "://" + u.Host + "/v1/embeddings"
}

// ---- env helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if sysutil.IsTruthy(v) {
			return true
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
