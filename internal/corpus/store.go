package corpus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

// ErrSnapshotNotFound is returned by a SnapshotStore that holds no snapshot
// for the requested fingerprint.
var ErrSnapshotNotFound = errors.New("corpus snapshot not found")

// DefaultTTL bounds how long a stored snapshot outlives its corpus.
const DefaultTTL = 15 * time.Minute

// DefaultKeyPrefix namespaces snapshot keys in Redis.
const DefaultKeyPrefix = "eventchat:corpus:"

// SnapshotStore shares built snapshots between processes.
type SnapshotStore interface {
	Load(ctx context.Context, fingerprint string) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}

// RedisStore keeps CBOR-encoded snapshots in Redis with a TTL.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore. A non-positive ttl uses DefaultTTL.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		prefix: DefaultKeyPrefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(fingerprint string) string {
	return s.prefix + fingerprint
}

// latestKey points at the fingerprint most recently saved.
func (s *RedisStore) latestKey() string {
	return s.prefix + "latest"
}

// Load fetches and decodes the snapshot for fingerprint.
func (s *RedisStore) Load(ctx context.Context, fingerprint string) (*Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Fingerprint != fingerprint {
		return nil, fmt.Errorf("%w: fingerprint mismatch", ErrInvalidSnapshot)
	}
	return &snap, nil
}

// Save encodes snap and stores it under its fingerprint, then records it as
// the latest snapshot.
func (s *RedisStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := cbor.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(snap.Fingerprint), data, s.ttl)
		pipe.Set(ctx, s.latestKey(), snap.Fingerprint, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Latest returns the fingerprint most recently saved, or ErrSnapshotNotFound.
func (s *RedisStore) Latest(ctx context.Context) (string, error) {
	fp, err := s.client.Get(ctx, s.latestKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSnapshotNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read latest snapshot: %w", err)
	}
	return fp, nil
}

// MemoryStore is an in-process SnapshotStore for tests and single-instance
// deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]*Snapshot
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]*Snapshot)}
}

// Load implements SnapshotStore.
func (s *MemoryStore) Load(_ context.Context, fingerprint string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snaps[fingerprint]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return snap, nil
}

// Save implements SnapshotStore.
func (s *MemoryStore) Save(_ context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snaps[snap.Fingerprint] = snap
	return nil
}
