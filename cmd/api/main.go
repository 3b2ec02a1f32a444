// Package main is the entry point for the discovery API server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/eventchat/internal/api"
	"github.com/onnwee/eventchat/internal/auth"
	"github.com/onnwee/eventchat/internal/config"
	"github.com/onnwee/eventchat/internal/corpus"
	"github.com/onnwee/eventchat/internal/discover"
	"github.com/onnwee/eventchat/internal/event"
	"github.com/onnwee/eventchat/internal/health"
	"github.com/onnwee/eventchat/internal/middleware"
	"github.com/onnwee/eventchat/internal/ranking"
	"github.com/onnwee/eventchat/internal/tracing"
	"github.com/onnwee/eventchat/migrations"
)

const serviceName = "eventchat-discovery"

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "optional YAML config file (environment variables take precedence)")
	flag.Parse()

	if *help {
		fmt.Println("Eventchat Discovery API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			slog.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	summary := cfg.LogSummary()
	attrs := make([]any, 0, 2*len(summary))
	for k, v := range summary {
		attrs = append(attrs, k, v)
	}
	logger.Info("configuration loaded", attrs...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.NewProvider(tracingConfig(cfg))
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	var checkers []api.HealthChecker

	store, db, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		checkers = append(checkers, health.NewDBChecker(db))
	}

	var snapshots corpus.SnapshotStore
	var limiter middleware.RateLimitStore
	if cfg.RedisURL != "" {
		rdb, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()

		snapshots = corpus.NewBreakerStore(corpus.NewRedisStore(rdb, cfg.IndexCacheTTL), corpus.DefaultBreakerConfig(), logger)
		limiter = middleware.NewRedisRateLimitStore(rdb)
		checkers = append(checkers, health.NewRedisChecker(rdb))
	} else {
		logger.Info("REDIS_URL not set; corpus snapshots and rate limits are per process")
		memLimiter := middleware.NewInMemoryRateLimitStore()
		go memLimiter.RunCleanup(ctx, 5*cfg.RateLimitWindow)
		limiter = memLimiter
	}

	weights, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		logger.Warn("using default ranking weights", "error", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	discoverMetrics := discover.NewMetrics()
	httpMetrics := middleware.NewMetrics()
	if err := discoverMetrics.Register(reg); err != nil {
		return fmt.Errorf("register discover metrics: %w", err)
	}
	if err := httpMetrics.Register(reg); err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	svc, err := discover.NewService(store, corpus.NewCache(snapshots, logger), discover.Config{
		Weights:  weights,
		Strategy: cfg.RelevanceStrategy,
	}, discoverMetrics, logger)
	if err != nil {
		return fmt.Errorf("discover service: %w", err)
	}

	tokens, err := auth.NewJWTService(auth.Config{
		Secret:         cfg.JWTSecret,
		PreviousSecret: cfg.JWTPreviousSecret,
	})
	if err != nil {
		return fmt.Errorf("jwt: %w", err)
	}

	broadcaster := discover.NewBroadcaster(svc, discoverMetrics, logger)
	go broadcaster.Run(ctx, store.Subscribe(ctx))

	handler := api.NewRouter(api.RouterConfig{
		Discover:    api.NewDiscoverHandlers(svc),
		Feed:        api.NewFeedHandlers(broadcaster, cfg.CORSAllowedOrigins),
		Health:      api.NewHealthHandlers(checkers...),
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Tokens:      tokens,
		HTTPMetrics: httpMetrics,
		Logger:      logger,
		ServiceName: serviceName,
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			MaxAge:         600,
		},
		RateLimitStore: limiter,
		RateLimit: middleware.RateLimitConfig{
			Requests: cfg.RateLimitRequests,
			Window:   cfg.RateLimitWindow,
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port, "strategy", svc.Strategy())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// openStore connects to Postgres and applies migrations when DATABASE_URL is
// set; otherwise it returns an empty in-memory store. db is nil for the
// in-memory store.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (event.Store, *sql.DB, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; using an empty in-memory event store")
		return event.NewInMemoryStore(), nil, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := migrations.Up(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return event.NewPostgresStore(db, cfg.DatabaseURL), db, nil
}

// newRedisClient parses a redis:// or rediss:// URL.
func newRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func tracingConfig(cfg *config.Config) tracing.Config {
	return tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.OTelExporterType,
		OTLPEndpoint: cfg.OTelEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: !cfg.IsProduction(),
	}
}
