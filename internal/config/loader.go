package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration when
// CODELENS_CONFIG is unset.
const DefaultConfigFile = "codelens.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	path := os.Getenv("CODELENS_CONFIG")
	if path == "" {
		path = DefaultConfigFile
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CODELENS_PORT")
	setString(&cfg.Server.CORSOrigin, "CODELENS_CORS_ORIGIN")
	setDuration(&cfg.Server.Timeout, "CODELENS_SERVER_TIMEOUT")

	setString(&cfg.Gemini.BaseURL, "CODELENS_GEMINI_BASE_URL")
	setString(&cfg.Gemini.Model, "CODELENS_GEMINI_MODEL")
	setDuration(&cfg.Gemini.Timeout, "CODELENS_GEMINI_TIMEOUT")
	setStringList(&cfg.Gemini.APIKeys, "CODELENS_GEMINI_API_KEYS")

	setInt(&cfg.Dispatch.MaxAttempts, "CODELENS_DISPATCH_MAX_ATTEMPTS")
	setDuration(&cfg.Dispatch.BaseDelay, "CODELENS_DISPATCH_BASE_DELAY")
	setDuration(&cfg.Dispatch.MaxDelay, "CODELENS_DISPATCH_MAX_DELAY")
	setFloat64(&cfg.Dispatch.Jitter, "CODELENS_DISPATCH_JITTER")
	setInt32(&cfg.Dispatch.MaxTokens, "CODELENS_DISPATCH_MAX_TOKENS")

	setInt64(&cfg.Cache.L1MaxSizeMB, "CODELENS_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "CODELENS_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.AnalysisTTL, "CODELENS_CACHE_ANALYSIS_TTL")
	setDuration(&cfg.Cache.ChatTTL, "CODELENS_CACHE_CHAT_TTL")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CODELENS_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CODELENS_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CODELENS_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CODELENS_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "CODELENS_PG_HEALTH_CHECK")

	setInt(&cfg.Breaker.MaxFailures, "CODELENS_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "CODELENS_BREAKER_TIMEOUT")

	setFloat64(&cfg.Rate.RequestsPerSecond, "CODELENS_RATE_RPS")
	setInt(&cfg.Rate.Burst, "CODELENS_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "CODELENS_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "CODELENS_RATE_MAX_IDLE_TIME")

	setString(&cfg.Logging.Level, "CODELENS_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CODELENS_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "CODELENS_LOG_ASYNC")
	setInt(&cfg.Logging.Buffer, "CODELENS_LOG_BUFFER")

	setString(&cfg.Telemetry.Endpoint, "CODELENS_OTLP_ENDPOINT")
}

// validate checks internal consistency. An empty credential list is a
// legal (degraded) configuration and is deliberately not rejected here.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Gemini.BaseURL == "" {
		return errors.New("gemini.base_url is required")
	}
	if cfg.Gemini.Model == "" {
		return errors.New("gemini.model is required")
	}
	if cfg.Dispatch.MaxAttempts < 1 {
		return errors.New("dispatch.max_attempts must be >= 1")
	}
	if cfg.Dispatch.BaseDelay <= 0 {
		return errors.New("dispatch.base_delay must be > 0")
	}
	if cfg.Dispatch.Jitter < 0 || cfg.Dispatch.Jitter >= 1 {
		return errors.New("dispatch.jitter must be in [0, 1)")
	}
	if cfg.Cache.L1MaxSizeMB < 1 {
		return errors.New("cache.l1_max_size_mb must be >= 1")
	}
	if cfg.Cache.AnalysisTTL <= 0 || cfg.Cache.ChatTTL <= 0 {
		return errors.New("cache TTLs must be > 0")
	}
	if cfg.Postgres.DSN != "" && cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not a known level", cfg.Logging.Level)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setStringList splits a comma-separated env value, dropping empty items.
func setStringList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
