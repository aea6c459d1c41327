// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server settings,
// logging, database paths, rate limiting, observability, and the sync-engine
// tunables (debounce windows, backoff, retry ceiling, polling schedule).
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "fieldsync")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// SyncConfig carries the client sync-engine tunables. The defaults are the
// verified production values; tests shrink them.
type SyncConfig struct {
	AutosaveDebounce  time.Duration // SYNC_AUTOSAVE_DEBOUNCE, default 500ms
	ReconnectDebounce time.Duration // SYNC_RECONNECT_DEBOUNCE, default 1s
	BaseDelay         time.Duration // SYNC_BASE_DELAY, backoff seed
	MaxDelay          time.Duration // SYNC_MAX_DELAY, backoff cap
	MaxRetries        int           // SYNC_MAX_RETRIES, automatic retry ceiling
	SubmitTimeout     time.Duration // SYNC_SUBMIT_TIMEOUT, transport bound
	PollDelays        []time.Duration // SYNC_POLL_DELAYS, e.g. "5s,15s,30s"
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool
	APIBasePath string

	// Storage
	ServerDBPath string // registry store (SQLite path)
	ClientDBPath string // on-device store (SQLite path)

	// ServerBaseURL is where the on-device sync engine reaches the registry
	// ingestion API.
	ServerBaseURL string

	// FraudWebhookURL receives the fraud-detection trigger for submissions
	// carrying GPS coordinates. Empty disables delivery (events stay queued
	// in the outbox).
	FraudWebhookURL string

	// Rate limiting
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Sync engine
	Sync SyncConfig

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

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		ServerDBPath:  getenv("SERVER_DB_PATH", "registry.db"),
		ClientDBPath:  getenv("CLIENT_DB_PATH", "fieldsync.db"),
		ServerBaseURL: getenv("SERVER_BASE_URL", "http://localhost:8080"),

		FraudWebhookURL: getenv("FRAUD_WEBHOOK_URL", ""),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 20.0),
		RateBurst: getint("RATE_BURST", 40),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Sync engine
		Sync: SyncConfig{
			AutosaveDebounce:  getdur("SYNC_AUTOSAVE_DEBOUNCE", 500*time.Millisecond),
			ReconnectDebounce: getdur("SYNC_RECONNECT_DEBOUNCE", time.Second),
			BaseDelay:         getdur("SYNC_BASE_DELAY", 10*time.Second),
			MaxDelay:          getdur("SYNC_MAX_DELAY", 5*time.Minute),
			MaxRetries:        getint("SYNC_MAX_RETRIES", 5),
			SubmitTimeout:     getdur("SYNC_SUBMIT_TIMEOUT", 60*time.Second),
			PollDelays:        getdurs("SYNC_POLL_DELAYS", []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second}),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "fieldsync"),
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
	if strings.TrimSpace(cfg.ServerDBPath) == "" {
		return cfg, errors.New("SERVER_DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.ClientDBPath) == "" {
		return cfg, errors.New("CLIENT_DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.ServerBaseURL) == "" {
		return cfg, errors.New("SERVER_BASE_URL must not be empty")
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
	if cfg.Sync.AutosaveDebounce <= 0 || cfg.Sync.ReconnectDebounce <= 0 {
		return cfg, errors.New("sync debounce windows must be positive durations")
	}
	if cfg.Sync.BaseDelay <= 0 || cfg.Sync.MaxDelay < cfg.Sync.BaseDelay {
		return cfg, errors.New("SYNC_MAX_DELAY must be >= SYNC_BASE_DELAY and both positive")
	}
	if cfg.Sync.MaxRetries < 1 {
		return cfg, errors.New("SYNC_MAX_RETRIES must be >= 1")
	}
	if cfg.Sync.SubmitTimeout <= 0 {
		return cfg, errors.New("SYNC_SUBMIT_TIMEOUT must be > 0")
	}
	if len(cfg.Sync.PollDelays) == 0 {
		return cfg, errors.New("SYNC_POLL_DELAYS must not be empty")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

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
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
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

// getdurs parses a comma-separated duration list (e.g. "5s,15s,30s").
// Any unparsable element falls back to the default list wholesale.
func getdurs(k string, def []time.Duration) []time.Duration {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return def
	}
	parts := splitCSV(v)
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		d, err := time.ParseDuration(p)
		if err != nil {
			return def
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return def
	}
	return out
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
