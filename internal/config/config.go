// Package config provides hierarchical configuration loading for CodeLens.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the CodeLens backend.
type Config struct {
	Server    Server    `yaml:"server"`
	Gemini    Gemini    `yaml:"gemini"`
	Dispatch  Dispatch  `yaml:"dispatch"`
	Cache     Cache     `yaml:"cache"`
	NATS      NATS      `yaml:"nats"`
	Postgres  Postgres  `yaml:"postgres"`
	Breaker   Breaker   `yaml:"breaker"`
	Rate      Rate      `yaml:"rate"`
	Logging   Logging   `yaml:"logging"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string        `yaml:"port"`
	CORSOrigin string        `yaml:"cors_origin"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Gemini holds upstream endpoint configuration. API keys are never read
// from YAML; they arrive only via CODELENS_GEMINI_API_KEYS.
type Gemini struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
	APIKeys []string      `yaml:"-"`
}

// Dispatch holds the executor's retry and backoff configuration.
type Dispatch struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      float64       `yaml:"jitter"`
	MaxTokens   int32         `yaml:"max_tokens"`
	Temperature float32       `yaml:"temperature"`
}

// Cache holds result cache configuration. The L2 tier is enabled by
// setting nats.url; bucket and TTLs live here.
type Cache struct {
	L1MaxSizeMB int64         `yaml:"l1_max_size_mb"`
	L2Bucket    string        `yaml:"l2_bucket"`
	AnalysisTTL time.Duration `yaml:"analysis_ttl"`
	ChatTTL     time.Duration `yaml:"chat_ttl"`
}

// NATS holds NATS JetStream configuration. An empty URL disables the L2
// cache tier.
type NATS struct {
	URL string `yaml:"url"`
}

// Postgres holds PostgreSQL connection configuration for the optional
// analysis history store. An empty DSN disables history.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	HealthCheck     time.Duration `yaml:"health_check"`
}

// Breaker holds circuit breaker configuration for the upstream transport.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Rate holds per-IP rate limiter configuration.
type Rate struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	MaxIdleTime       time.Duration `yaml:"max_idle_time"`
}

// Logging holds structured logging configuration. Buffer sizes the
// async handler's queue and is ignored when Async is off.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
	Buffer  int    `yaml:"buffer"`
}

// Telemetry holds OpenTelemetry export configuration. An empty endpoint
// disables export.
type Telemetry struct {
	Endpoint string `yaml:"endpoint"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8080",
			CORSOrigin: "http://localhost:3000",
			Timeout:    2 * time.Minute,
		},
		Gemini: Gemini{
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Model:   "gemini-2.0-flash",
			Timeout: 60 * time.Second,
		},
		Dispatch: Dispatch{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			Jitter:      0.2,
			MaxTokens:   8192,
			Temperature: 0.2,
		},
		Cache: Cache{
			L1MaxSizeMB: 64,
			L2Bucket:    "codelens-results",
			AnalysisTTL: 15 * time.Minute,
			ChatTTL:     5 * time.Minute,
		},
		Postgres: Postgres{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 10 * time.Minute,
			HealthCheck:     time.Minute,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Rate: Rate{
			RequestsPerSecond: 10,
			Burst:             30,
			CleanupInterval:   5 * time.Minute,
			MaxIdleTime:       15 * time.Minute,
		},
		Logging: Logging{
			Level:   "info",
			Service: "codelens",
			Buffer:  1024,
		},
	}
}
