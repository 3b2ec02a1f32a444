package corpus

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/onnwee/eventchat/internal/event"
)

// Source reports where Cache.Get found its snapshot.
type Source string

const (
	SourceMemory Source = "memory" // in-process hit
	SourceStore  Source = "store"  // loaded from the SnapshotStore
	SourceBuilt  Source = "built"  // rebuilt from the events
)

// Cache keeps the most recent snapshot in process and falls back to an
// optional SnapshotStore before rebuilding. Safe for concurrent use.
type Cache struct {
	store  SnapshotStore
	logger *slog.Logger

	mu      sync.RWMutex
	current *Snapshot
}

// NewCache creates a Cache. store may be nil; logger defaults to slog.Default().
func NewCache(store SnapshotStore, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, logger: logger}
}

// Get returns the snapshot for events. Store failures are logged and the
// snapshot is rebuilt; the only error is a cancelled context.
func (c *Cache) Get(ctx context.Context, events []event.Event) (*Snapshot, Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	fp := Fingerprint(events)

	c.mu.RLock()
	current := c.current
	c.mu.RUnlock()
	if current != nil && current.Fingerprint == fp {
		return current, SourceMemory, nil
	}

	if c.store != nil {
		snap, err := c.store.Load(ctx, fp)
		switch {
		case err == nil:
			c.set(snap)
			return snap, SourceStore, nil
		case errors.Is(err, ErrSnapshotNotFound):
		default:
			c.logger.WarnContext(ctx, "failed to load corpus snapshot", "fingerprint", fp, "error", err)
		}
	}

	snap := BuildSnapshot(events)
	c.set(snap)

	if c.store != nil {
		if err := c.store.Save(ctx, snap); err != nil {
			c.logger.WarnContext(ctx, "failed to save corpus snapshot", "fingerprint", fp, "error", err)
		}
	}

	c.logger.DebugContext(ctx, "built corpus snapshot", "fingerprint", fp, "documents", snap.Documents)
	return snap, SourceBuilt, nil
}

// Invalidate drops the in-process snapshot.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

func (c *Cache) set(snap *Snapshot) {
	c.mu.Lock()
	c.current = snap
	c.mu.Unlock()
}
