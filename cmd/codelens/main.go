package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/subinesh21/codelens-ai/internal/adapter/gemini"
	clhttp "github.com/subinesh21/codelens-ai/internal/adapter/http"
	"github.com/subinesh21/codelens-ai/internal/adapter/natskv"
	"github.com/subinesh21/codelens-ai/internal/adapter/otel"
	"github.com/subinesh21/codelens-ai/internal/adapter/postgres"
	"github.com/subinesh21/codelens-ai/internal/adapter/ristretto"
	"github.com/subinesh21/codelens-ai/internal/adapter/tiered"
	"github.com/subinesh21/codelens-ai/internal/adapter/ws"
	"github.com/subinesh21/codelens-ai/internal/config"
	"github.com/subinesh21/codelens-ai/internal/domain/credential"
	"github.com/subinesh21/codelens-ai/internal/logger"
	"github.com/subinesh21/codelens-ai/internal/middleware"
	"github.com/subinesh21/codelens-ai/internal/port/cache"
	"github.com/subinesh21/codelens-ai/internal/port/database"
	"github.com/subinesh21/codelens-ai/internal/resilience"
	"github.com/subinesh21/codelens-ai/internal/service"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Server.Port,
		"model", cfg.Gemini.Model,
		"credentials", len(cfg.Gemini.APIKeys),
	)

	ctx := context.Background()

	// --- Telemetry ---
	var metrics *otel.Metrics
	if cfg.Telemetry.Endpoint != "" {
		shutdown, err := otel.Setup(ctx, cfg.Logging.Service, cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()

		metrics, err = otel.NewMetrics()
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		slog.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint)
	}

	// --- History store (optional) ---
	var store database.Store
	if cfg.Postgres.DSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		store = postgres.NewStore(pool)
		slog.Info("postgres connected, history enabled")
	} else {
		slog.Info("no database configured, history disabled")
	}

	// --- Result cache ---
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("ristretto: %w", err)
	}
	defer l1.Close()

	var backend cache.Cache = l1
	cacheTiers := "memory"
	if cfg.NATS.URL != "" {
		bucketTTL := max(cfg.Cache.AnalysisTTL, cfg.Cache.ChatTTL)
		kv, closeKV, err := natskv.Connect(ctx, cfg.NATS.URL, cfg.Cache.L2Bucket, bucketTTL)
		if err != nil {
			return fmt.Errorf("nats kv: %w", err)
		}
		defer closeKV()
		backend = tiered.New(l1, kv, cfg.Cache.AnalysisTTL)
		cacheTiers = "memory+nats"
		slog.Info("nats connected, tiered cache enabled", "bucket", cfg.Cache.L2Bucket)
	}

	// --- Dispatch pipeline ---
	pool := credential.NewPool(cfg.Gemini.APIKeys, log)
	gen := gemini.NewClient(cfg.Gemini.BaseURL, cfg.Gemini.Model, cfg.Gemini.Timeout)
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	backoff := resilience.Backoff{
		Base:   cfg.Dispatch.BaseDelay,
		Max:    cfg.Dispatch.MaxDelay,
		Jitter: cfg.Dispatch.Jitter,
	}

	exec := service.NewExecutor(pool, gen, breaker, backoff,
		cfg.Dispatch.MaxAttempts, cfg.Gemini.Model, metrics, log)
	resultCache := service.NewResultCache(backend, cfg.Cache.AnalysisTTL, cfg.Cache.ChatTTL, log)
	history := service.NewHistory(store, log)
	hub := ws.NewHub()
	dispatcher := service.NewDispatcher(resultCache, exec, pool, history, hub,
		cfg.Dispatch.MaxTokens, cfg.Dispatch.Temperature, metrics, log)

	// --- HTTP ---
	handlers := &clhttp.Handlers{
		Dispatcher:  dispatcher,
		History:     history,
		Hub:         hub,
		Breaker:     breaker,
		Version:     version,
		CacheTiers:  cacheTiers,
		AnalysisTTL: cfg.Cache.AnalysisTTL,
		ChatTTL:     cfg.Cache.ChatTTL,
	}

	rl := middleware.NewRateLimiter(cfg.Rate)
	stopCleanup := rl.StartCleanup()
	defer stopCleanup()

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(clhttp.Logger)
	r.Use(clhttp.SecurityHeaders)
	r.Use(clhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(chimw.Timeout(cfg.Server.Timeout))
	r.Use(rl.Handler)
	if cfg.Telemetry.Endpoint != "" {
		r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	}

	clhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
