// Package main is the entry point for the corpus index warmer. It builds the
// per-field document frequency indexes over the discoverable events and
// publishes them to Redis, so API replicas load instead of rebuilding.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/eventchat/internal/config"
	"github.com/onnwee/eventchat/internal/corpus"
	"github.com/onnwee/eventchat/internal/event"
	"github.com/onnwee/eventchat/internal/middleware"
)

// ErrMissingRedisURL is returned when there is nowhere to publish to.
var ErrMissingRedisURL = errors.New("REDIS_URL is required")

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "optional YAML config file (environment variables take precedence)")
	watch := flag.Bool("watch", false, "keep running and republish whenever events change")
	flag.Parse()

	if *help {
		fmt.Println("Eventchat Corpus Index Warmer")
		fmt.Println()
		fmt.Println("Usage: indexer [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if errs = indexerErrors(cfg, errs); len(errs) > 0 {
		for _, err := range errs {
			slog.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *watch, logger); err != nil {
		logger.Error("indexer failed", "error", err)
		os.Exit(1)
	}
}

// indexerErrors drops configuration errors that only concern the API
// server and adds the indexer's own requirements.
func indexerErrors(cfg *config.Config, errs []error) []error {
	var out []error
	for _, err := range errs {
		if errors.Is(err, config.ErrMissingJWTSecret) {
			continue
		}
		out = append(out, err)
	}
	if cfg == nil {
		return out
	}
	if cfg.DatabaseURL == "" {
		out = append(out, errors.New("DATABASE_URL is required"))
	}
	if cfg.RedisURL == "" {
		out = append(out, ErrMissingRedisURL)
	}
	return out
}

func run(ctx context.Context, cfg *config.Config, watch bool, logger *slog.Logger) error {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	store := event.NewPostgresStore(db, cfg.DatabaseURL)
	snapshots := corpus.NewRedisStore(rdb, cfg.IndexCacheTTL)

	if !watch {
		snap, err := publish(ctx, store, snapshots, time.Now())
		if err != nil {
			return err
		}
		fmt.Println(snap.Fingerprint)
		return nil
	}

	return watchAndPublish(ctx, store, snapshots, cfg.IndexCacheTTL, logger)
}

// publish builds the snapshot of the events discoverable at now and saves it.
func publish(ctx context.Context, store event.Store, snapshots corpus.SnapshotStore, now time.Time) (*corpus.Snapshot, error) {
	events, err := store.ListDiscoverable(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list discoverable events: %w", err)
	}

	snap := corpus.BuildSnapshot(events)
	if err := snapshots.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("publish snapshot: %w", err)
	}
	return snap, nil
}

// watchAndPublish republishes on every change notification, and at least
// once per ttl/2 so the stored snapshot never expires while the corpus is
// quiet and events keep passing their start dates.
func watchAndPublish(ctx context.Context, store event.Store, snapshots corpus.SnapshotStore, ttl time.Duration, logger *slog.Logger) error {
	if ttl <= 0 {
		ttl = corpus.DefaultTTL
	}
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()

	changes := store.Subscribe(ctx)
	for {
		snap, err := publish(ctx, store, snapshots, time.Now())
		if err != nil {
			logger.ErrorContext(ctx, "failed to publish corpus snapshot", "error", err)
		} else {
			logger.InfoContext(ctx, "published corpus snapshot",
				"fingerprint", snap.Fingerprint,
				"documents", snap.Documents,
			)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case _, ok := <-changes:
			if !ok {
				return nil
			}
		}
	}
}
