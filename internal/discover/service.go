// Package discover serves the recommended feed and event search on top of an
// event.Store, choosing the relevance strategy and memoising corpus indexes.
package discover

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/eventchat/internal/corpus"
	"github.com/onnwee/eventchat/internal/event"
	"github.com/onnwee/eventchat/internal/geo"
	"github.com/onnwee/eventchat/internal/ranking"
	"github.com/onnwee/eventchat/internal/relevance"
	"github.com/onnwee/eventchat/internal/tracing"
)

// Config tunes a Service.
type Config struct {
	// Weights defaults to ranking.DefaultWeights().
	Weights *ranking.Weights

	// Strategy is relevance.StrategyMatchRatio (default) or relevance.StrategyTFIDF.
	Strategy string

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service ranks discoverable events for a user or a query.
type Service struct {
	store    event.Store
	cache    *corpus.Cache
	weights  *ranking.Weights
	strategy string
	now      func() time.Time
	metrics  *Metrics
	logger   *slog.Logger
}

// NewService creates a Service. cache is required only for the TF-IDF
// strategy; metrics may be nil.
func NewService(store event.Store, cache *corpus.Cache, cfg Config, metrics *Metrics, logger *slog.Logger) (*Service, error) {
	strategy, err := relevance.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if strategy == relevance.StrategyTFIDF && cache == nil {
		cache = corpus.NewCache(nil, logger)
	}

	weights := cfg.Weights
	if weights == nil {
		weights = ranking.DefaultWeights()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:    store,
		cache:    cache,
		weights:  weights,
		strategy: strategy,
		now:      now,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Strategy returns the relevance strategy in use.
func (s *Service) Strategy() string {
	return s.strategy
}

// Recommend ranks the discoverable events userID has not joined. Events the
// user has joined, past or upcoming, supply the social context.
func (s *Service) Recommend(ctx context.Context, userID string, coord *geo.Coordinate) (results []ranking.Scored, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "discover.recommend",
		attribute.String("user.id", userID),
		attribute.Bool("discover.has_coordinate", coord != nil),
	)
	defer func() { endSpan(err) }()

	start := time.Now()

	discoverable, err := s.store.ListDiscoverable(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list discoverable events: %w", err)
	}

	joined, err := s.store.ListByMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list joined events: %w", err)
	}

	scorer, err := s.scorer(ctx, discoverable)
	if err != nil {
		return nil, err
	}

	events := event.MergeUnique(joined, discoverable)
	results = ranking.RecommendScored(events, userID, coord,
		ranking.WithWeights(s.weights),
		ranking.WithScorer(scorer),
	)

	s.observe(ctx, OpRecommend, start, len(events), len(results))
	return results, nil
}

// Search ranks the discoverable events matching query.
func (s *Service) Search(ctx context.Context, query string, coord *geo.Coordinate) (results []ranking.Scored, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "discover.search",
		attribute.Int("discover.query_length", len(query)),
		attribute.Bool("discover.has_coordinate", coord != nil),
	)
	defer func() { endSpan(err) }()

	start := time.Now()

	events, err := s.store.ListDiscoverable(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list discoverable events: %w", err)
	}

	scorer, err := s.scorer(ctx, events)
	if err != nil {
		return nil, err
	}

	results = ranking.SearchScored(events, query, coord,
		ranking.WithWeights(s.weights),
		ranking.WithScorer(scorer),
	)

	s.observe(ctx, OpSearch, start, len(events), len(results))
	return results, nil
}

// scorer returns the configured relevance strategy. TF-IDF document
// frequencies come from the discoverable corpus so every user shares one
// snapshot.
func (s *Service) scorer(ctx context.Context, corpusEvents []event.Event) (relevance.Scorer, error) {
	if s.strategy != relevance.StrategyTFIDF {
		return relevance.MatchRatioScorer{}, nil
	}

	snap, source, err := s.cache.Get(ctx, corpusEvents)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus index: %w", err)
	}
	s.metrics.IncIndexCache(string(source))
	tracing.SetAttributes(ctx,
		attribute.String("discover.index_source", string(source)),
		attribute.String("discover.index_fingerprint", snap.Fingerprint),
	)
	return relevance.TFIDFScorer{Indexes: snap}, nil
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, candidates, results int) {
	elapsed := time.Since(start)
	s.metrics.ObserveRank(op, elapsed.Seconds(), results)
	tracing.SetAttributes(ctx,
		attribute.Int("discover.candidates", candidates),
		attribute.Int("discover.results", results),
	)
	s.logger.DebugContext(ctx, "ranked events",
		"op", op,
		"strategy", s.strategy,
		"candidates", candidates,
		"results", results,
		"duration_ms", elapsed.Milliseconds(),
	)
}
