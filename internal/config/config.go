// Package config provides configuration loading and validation for the
// discovery engine. It uses koanf to merge environment variables with
// optional file overrides.
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
)

// Config holds all configuration values for the discovery engine.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis (optional cache for trending reads)
	RedisURL string `koanf:"redis_url"`

	// Scoring calibration overrides (optional JSON file)
	CalibrationPath string `koanf:"calibration_path"`

	// Candidate retrieval
	CandidatePoolSize   int `koanf:"candidate_pool_size"`
	CandidateTargetSize int `koanf:"candidate_target_size"`
	DomainCap           int `koanf:"domain_cap"`
	MaxExcludeIDs       int `koanf:"max_exclude_ids"`

	// Trending recomputation job
	TrendingInterval time.Duration `koanf:"trending_interval"`
	TrendingTopK     int           `koanf:"trending_top_k"`
	TrendingMinScore float64       `koanf:"trending_min_score"`

	// Distributed tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"`
	TracingOTLPEndpoint string  `koanf:"tracing_otlp_endpoint"`
	TracingSampleRate   float64 `koanf:"tracing_sample_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrInvalidPort        = errors.New("PORT must be a valid integer")
)

// Defaults for non-secret configuration.
const (
	DefaultPort                = 8080
	DefaultEnv                 = "development"
	DefaultCandidatePoolSize   = 500
	DefaultCandidateTargetSize = 300
	DefaultDomainCap           = 20
	DefaultMaxExcludeIDs       = 200
	DefaultTrendingInterval    = 15 * time.Minute
	DefaultTrendingTopK        = 100
	DefaultTrendingMinScore    = 0.05
	DefaultTracingExporter     = "otlp-http"
	DefaultTracingSampleRate   = 0.1
)

// Load reads configuration from environment variables and an optional
// config file. Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if
// valid). If a config file path is provided and the file cannot be
// loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, err := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort)
	if err != nil {
		loadErrs = append(loadErrs, ErrInvalidPort)
	}
	poolSize, err := getEnvIntOrDefault("CANDIDATE_POOL_SIZE", k.Int("candidate_pool_size"), DefaultCandidatePoolSize)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	targetSize, err := getEnvIntOrDefault("CANDIDATE_TARGET_SIZE", k.Int("candidate_target_size"), DefaultCandidateTargetSize)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	domainCap, err := getEnvIntOrDefault("DOMAIN_CAP", k.Int("domain_cap"), DefaultDomainCap)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	maxExclude, err := getEnvIntOrDefault("MAX_EXCLUDE_IDS", k.Int("max_exclude_ids"), DefaultMaxExcludeIDs)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	topK, err := getEnvIntOrDefault("TRENDING_TOP_K", k.Int("trending_top_k"), DefaultTrendingTopK)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	minScore, err := getEnvFloatOrDefault("TRENDING_MIN_SCORE", k.Float64("trending_min_score"), DefaultTrendingMinScore)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	interval, err := getEnvDurationOrDefault("TRENDING_INTERVAL", k.Duration("trending_interval"), DefaultTrendingInterval)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	sampleRate, err := getEnvFloatOrDefault("TRACING_SAMPLE_RATE", k.Float64("tracing_sample_rate"), DefaultTracingSampleRate)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	cfg := &Config{
		Port:                port,
		Env:                 getEnvOrDefault("ENV", k.String("env"), DefaultEnv),
		DatabaseURL:         getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:            getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		CalibrationPath:     getEnvOrKoanf("CALIBRATION_PATH", k, "calibration_path"),
		CandidatePoolSize:   poolSize,
		CandidateTargetSize: targetSize,
		DomainCap:           domainCap,
		MaxExcludeIDs:       maxExclude,
		TrendingInterval:    interval,
		TrendingTopK:        topK,
		TrendingMinScore:    minScore,
		TracingEnabled:      getEnvBoolOrDefault("TRACING_ENABLED", k.Bool("tracing_enabled")),
		TracingExporter:     getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		TracingOTLPEndpoint: getEnvOrKoanf("TRACING_OTLP_ENDPOINT", k, "tracing_otlp_endpoint"),
		TracingSampleRate:   sampleRate,
		TracingInsecure:     getEnvBoolOrDefault("TRACING_INSECURE", k.Bool("tracing_insecure")),
	}

	errs := append(loadErrs, cfg.Validate()...)
	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise
// the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise
// the koanf value, otherwise the default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvBoolOrDefault returns the environment variable as a bool if set,
// otherwise the koanf value. Anything other than "true" or "1" is false.
func getEnvBoolOrDefault(envKey string, koanfVal bool) bool {
	if val := os.Getenv(envKey); val != "" {
		return val == "true" || val == "1"
	}
	return koanfVal
}

// getEnvIntOrDefault returns the environment variable as an int if set,
// otherwise the koanf value, otherwise the default. Returns an error when
// the environment variable is set but not a valid integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as a float64 if
// set, otherwise the koanf value, otherwise the default.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid number: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvDurationOrDefault returns the environment variable as a duration
// if set, otherwise the koanf value, otherwise the default.
func getEnvDurationOrDefault(envKey string, koanfVal time.Duration, defaultVal time.Duration) (time.Duration, error) {
	if val := os.Getenv(envKey); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid duration: %w", envKey, err)
		}
		return d, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// Connection strings are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                  fmt.Sprintf("%d", c.Port),
		"env":                   c.Env,
		"database_url":          maskURL(c.DatabaseURL),
		"redis_url":             maskURL(c.RedisURL),
		"calibration_path":      valueOrUnset(c.CalibrationPath),
		"candidate_pool_size":   fmt.Sprintf("%d", c.CandidatePoolSize),
		"candidate_target_size": fmt.Sprintf("%d", c.CandidateTargetSize),
		"domain_cap":            fmt.Sprintf("%d", c.DomainCap),
		"max_exclude_ids":       fmt.Sprintf("%d", c.MaxExcludeIDs),
		"trending_interval":     c.TrendingInterval.String(),
		"trending_top_k":        fmt.Sprintf("%d", c.TrendingTopK),
		"trending_min_score":    fmt.Sprintf("%.2f", c.TrendingMinScore),
		"tracing_enabled":       strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":      c.TracingExporter,
		"tracing_otlp_endpoint": valueOrUnset(c.TracingOTLPEndpoint),
		"tracing_sample_rate":   fmt.Sprintf("%.2f", c.TracingSampleRate),
	}
}

func valueOrUnset(s string) string {
	if s == "" {
		return "<not set>"
	}
	return s
}

// maskURL masks the password component of a connection URL.
func maskURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return "****"
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // no credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // username only, nothing to mask
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
