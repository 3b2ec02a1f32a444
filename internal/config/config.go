// Package config provides configuration loading and validation for the
// discovery API and the index warmer.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/onnwee/eventchat/internal/relevance"
	"github.com/onnwee/eventchat/internal/tracing"
)

// Config holds all configuration values.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Storage
	DatabaseURL string `koanf:"database_url"` // empty uses the in-memory store outside production
	RedisURL    string `koanf:"redis_url"`    // empty disables the shared index cache

	// JWT Authentication
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"` // accepted during rotation

	// Ranking
	RankingCalibrationPath string        `koanf:"ranking_calibration_path"`
	RelevanceStrategy      string        `koanf:"relevance_strategy"` // match_ratio or tfidf
	IndexCacheTTL          time.Duration `koanf:"index_cache_ttl"`

	// HTTP edge
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins"`
	RateLimitRequests  int           `koanf:"rate_limit_requests"` // per client per window on discovery routes
	RateLimitWindow    time.Duration `koanf:"rate_limit_window"`

	// Tracing
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	OTelExporterType  string  `koanf:"otel_exporter_type"`
	OTelEndpoint      string  `koanf:"otel_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL  = errors.New("DATABASE_URL is required in production")
	ErrMissingJWTSecret    = errors.New("JWT_SECRET is required")
	ErrInvalidPort         = errors.New("PORT must be a valid integer")
	ErrInvalidStrategy     = errors.New("RELEVANCE_STRATEGY must be match_ratio or tfidf")
	ErrInvalidCacheTTL     = errors.New("INDEX_CACHE_TTL must be a non-negative duration")
	ErrInvalidSampleRate   = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
	ErrInvalidExporterType = errors.New("OTEL_EXPORTER_TYPE must be otlp-http or otlp-grpc")
	ErrInvalidRateLimit    = errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	ErrInvalidBool         = errors.New("must be a boolean")
	ErrInvalidFloat        = errors.New("must be a valid float")
	ErrInvalidDuration     = errors.New("must be a valid duration")
)

// Default values for non-secret configuration.
const (
	DefaultPort              = 8080
	DefaultEnv               = "development"
	DefaultRelevanceStrategy = relevance.StrategyMatchRatio
	DefaultIndexCacheTTL     = 15 * time.Minute
	DefaultOTelExporterType  = tracing.ExporterOTLPHTTP
	DefaultTracingSampleRate = 0.1
	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = time.Minute
)

// EnvProduction is the Env value that enforces production requirements.
const EnvProduction = "production"

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	collect := func(err error) {
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
	}

	// EVENTCHAT_PORT first, then PORT as set by most hosting platforms
	port, err := getEnvIntOrDefaultMulti([]string{"EVENTCHAT_PORT", "PORT"}, k.Int("port"), DefaultPort)
	collect(err)

	cacheTTL, err := getEnvDurationOrDefault("INDEX_CACHE_TTL", k, "index_cache_ttl", DefaultIndexCacheTTL)
	collect(err)

	rateLimitRequests, err := getEnvIntOrDefault("RATE_LIMIT_REQUESTS", k.Int("rate_limit_requests"), DefaultRateLimitRequests)
	collect(err)

	rateLimitWindow, err := getEnvDurationOrDefault("RATE_LIMIT_WINDOW", k, "rate_limit_window", DefaultRateLimitWindow)
	collect(err)

	tracingEnabled, err := getEnvBoolOrDefault("TRACING_ENABLED", k, "tracing_enabled", false)
	collect(err)

	sampleRate, err := getEnvFloatOrDefault("TRACING_SAMPLE_RATE", k, "tracing_sample_rate", DefaultTracingSampleRate)
	collect(err)

	cfg := &Config{
		Port:                   port,
		Env:                    getEnvOrDefaultMulti([]string{"EVENTCHAT_ENV", "ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:            getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:               getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		JWTSecret:              getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret:      getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		RankingCalibrationPath: getEnvOrKoanf("RANKING_CALIBRATION_PATH", k, "ranking_calibration_path"),
		RelevanceStrategy:      getEnvOrDefault("RELEVANCE_STRATEGY", k.String("relevance_strategy"), DefaultRelevanceStrategy),
		IndexCacheTTL:          cacheTTL,
		CORSAllowedOrigins:     getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		RateLimitRequests:      rateLimitRequests,
		RateLimitWindow:        rateLimitWindow,
		TracingEnabled:         tracingEnabled,
		OTelExporterType:       getEnvOrDefault("OTEL_EXPORTER_TYPE", k.String("otel_exporter_type"), DefaultOTelExporterType),
		OTelEndpoint:           getEnvOrKoanf("OTEL_EXPORTER_OTLP_ENDPOINT", k, "otel_endpoint"),
		TracingSampleRate:      sampleRate,
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	return getEnvOrDefaultMulti([]string{envKey}, koanfVal, defaultVal)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Note: a port of 0 in a YAML file falls back to the default.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefault reads an integer from the environment, then the file.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return defaultVal, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvListOrKoanf reads a comma-separated list from the environment, or a
// YAML list from the file. Blank entries are dropped.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	raw := k.Strings(koanfKey)
	if val := os.Getenv(envKey); val != "" {
		raw = strings.Split(val, ",")
	}

	var out []string
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvBoolOrDefault reads a boolean from the environment, then the file.
func getEnvBoolOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) (bool, error) {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		}
		return defaultVal, fmt.Errorf("%s %w", envKey, ErrInvalidBool)
	}
	if k.Exists(koanfKey) {
		return k.Bool(koanfKey), nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault reads a float from the environment, then the file.
// Unlike ints, an explicit 0 in the file is honoured.
func getEnvFloatOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return defaultVal, fmt.Errorf("%s %w: %v", envKey, ErrInvalidFloat, err)
		}
		return f, nil
	}
	if k.Exists(koanfKey) {
		return k.Float64(koanfKey), nil
	}
	return defaultVal, nil
}

// getEnvDurationOrDefault reads a Go duration ("90s", "15m") from the
// environment, then the file.
func getEnvDurationOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal time.Duration) (time.Duration, error) {
	raw := os.Getenv(envKey)
	source := envKey
	if raw == "" && k.Exists(koanfKey) {
		raw = k.String(koanfKey)
		source = koanfKey
	}
	if raw == "" {
		return defaultVal, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultVal, fmt.Errorf("%s %w: %v", source, ErrInvalidDuration, err)
	}
	return d, nil
}

// IsProduction reports whether production requirements apply.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" && c.IsProduction() {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if _, err := relevance.ParseStrategy(c.RelevanceStrategy); err != nil {
		errs = append(errs, ErrInvalidStrategy)
	}
	if c.IndexCacheTTL < 0 {
		errs = append(errs, ErrInvalidCacheTTL)
	}

	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}

	if c.TracingEnabled {
		switch c.OTelExporterType {
		case tracing.ExporterOTLPHTTP, tracing.ExporterOTLPGRPC:
		default:
			errs = append(errs, ErrInvalidExporterType)
		}
		if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
			errs = append(errs, ErrInvalidSampleRate)
		}
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                     strconv.Itoa(c.Port),
		"env":                      c.Env,
		"database_url":             maskURL(c.DatabaseURL),
		"redis_url":                maskURL(c.RedisURL),
		"jwt_secret":               maskSecret(c.JWTSecret),
		"jwt_previous_secret":      maskSecret(c.JWTPreviousSecret),
		"ranking_calibration_path": c.RankingCalibrationPath,
		"relevance_strategy":       c.RelevanceStrategy,
		"index_cache_ttl":          c.IndexCacheTTL.String(),
		"cors_allowed_origins":     strings.Join(c.CORSAllowedOrigins, ","),
		"rate_limit_requests":      strconv.Itoa(c.RateLimitRequests),
		"rate_limit_window":        c.RateLimitWindow.String(),
		"tracing_enabled":          strconv.FormatBool(c.TracingEnabled),
		"otel_exporter_type":       c.OTelExporterType,
		"otel_endpoint":            c.OTelEndpoint,
		"tracing_sample_rate":      strconv.FormatFloat(c.TracingSampleRate, 'f', -1, 64),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskURL masks the password in a connection URL (postgres://, redis://, ...).
func maskURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.LastIndex(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
