package corpus

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes a BreakerStore.
type BreakerConfig struct {
	FailureThreshold uint32        // consecutive failures that open the breaker
	OpenTimeout      time.Duration // how long the breaker stays open
}

// DefaultBreakerConfig opens after 5 consecutive failures for 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, OpenTimeout: 30 * time.Second}
}

// BreakerStore guards a SnapshotStore with a circuit breaker so an
// unreachable Redis fails fast instead of adding a timeout to every ranking
// request. A missing snapshot is a normal answer, not a failure.
type BreakerStore struct {
	next SnapshotStore
	cb   *gobreaker.CircuitBreaker[*Snapshot]
}

// NewBreakerStore wraps next. Zero config fields take their defaults.
func NewBreakerStore(next SnapshotStore, cfg BreakerConfig, logger *slog.Logger) *BreakerStore {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        "corpus-snapshot-store",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrSnapshotNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerStore{next: next, cb: gobreaker.NewCircuitBreaker[*Snapshot](settings)}
}

// Load implements SnapshotStore.
func (s *BreakerStore) Load(ctx context.Context, fingerprint string) (*Snapshot, error) {
	return s.cb.Execute(func() (*Snapshot, error) {
		return s.next.Load(ctx, fingerprint)
	})
}

// Save implements SnapshotStore.
func (s *BreakerStore) Save(ctx context.Context, snap *Snapshot) error {
	_, err := s.cb.Execute(func() (*Snapshot, error) {
		return nil, s.next.Save(ctx, snap)
	})
	return err
}

// State reports the breaker state ("closed", "open" or "half-open").
func (s *BreakerStore) State() string {
	return s.cb.State().String()
}
