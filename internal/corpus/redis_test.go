package corpus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/eventchat/internal/relevance"
)

// newTestRedis connects to a local Redis or skips the test.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStore_SaveLoad(t *testing.T) {
	client := newTestRedis(t)
	store := NewRedisStore(client, time.Minute)
	store.prefix = "eventchat:test:" + time.Now().Format("150405.000000000") + ":"
	ctx := context.Background()

	snap := BuildSnapshot(sampleEvents())
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Cleanup(func() {
		client.Del(context.Background(), store.key(snap.Fingerprint), store.latestKey())
	})

	got, err := store.Load(ctx, snap.Fingerprint)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Index(relevance.FieldMembers).DocumentFrequency("u2") != 2 {
		t.Error("members index not restored")
	}

	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest != snap.Fingerprint {
		t.Errorf("Latest = %q, want %q", latest, snap.Fingerprint)
	}

	ttl := client.TTL(ctx, store.key(snap.Fingerprint)).Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want within (0, 1m]", ttl)
	}
}

func TestRedisStore_NotFound(t *testing.T) {
	client := newTestRedis(t)
	store := NewRedisStore(client, 0)

	_, err := store.Load(context.Background(), "does-not-exist")
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("error = %v, want ErrSnapshotNotFound", err)
	}
}

func TestNewRedisStore_DefaultTTL(t *testing.T) {
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: "localhost:6379"}), 0)
	if store.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", store.ttl, DefaultTTL)
	}
}
