package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCodeRateLimited is the error code of requests rejected with 429.
const ErrCodeRateLimited = "rate_limited"

// RateLimitConfig is a fixed window: at most Requests per Window per key.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Validate checks that both limits are positive.
func (c RateLimitConfig) Validate() error {
	if c.Requests <= 0 {
		return fmt.Errorf("rate limit requests must be > 0 (got %d)", c.Requests)
	}
	if c.Window <= 0 {
		return fmt.Errorf("rate limit window must be > 0 (got %s)", c.Window)
	}
	return nil
}

// RateLimitDecision is the outcome of one Allow call.
type RateLimitDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration // zero when allowed
}

// RateLimitStore keeps window counters. Implementations must be safe for
// concurrent use.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, cfg RateLimitConfig) (RateLimitDecision, error)
}

// decide turns a window count into a decision.
func decide(count int, cfg RateLimitConfig, resetIn time.Duration) RateLimitDecision {
	if count <= cfg.Requests {
		return RateLimitDecision{Allowed: true, Remaining: cfg.Requests - count}
	}
	if resetIn <= 0 {
		resetIn = time.Second
	}
	return RateLimitDecision{RetryAfter: resetIn}
}

type window struct {
	count int
	end   time.Time
}

// InMemoryRateLimitStore counts per process. Use RedisRateLimitStore when
// several API replicas share a limit.
type InMemoryRateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewInMemoryRateLimitStore creates an empty store.
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow implements RateLimitStore.
func (s *InMemoryRateLimitStore) Allow(_ context.Context, key string, cfg RateLimitConfig) (RateLimitDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.end) {
		w = &window{end: now.Add(cfg.Window)}
		s.windows[key] = w
	}
	w.count++
	return decide(w.count, cfg, w.end.Sub(now)), nil
}

// Cleanup drops expired windows. Run it periodically; see RunCleanup.
func (s *InMemoryRateLimitStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, w := range s.windows {
		if !now.Before(w.end) {
			delete(s.windows, key)
		}
	}
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (s *InMemoryRateLimitStore) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

// DefaultRateLimitKeyPrefix namespaces counters in Redis.
const DefaultRateLimitKeyPrefix = "eventchat:ratelimit:"

// RedisRateLimitStore keeps fixed-window counters in Redis, shared by all
// replicas. The window starts at the first request for a key.
type RedisRateLimitStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisRateLimitStore creates a store on the given client.
func NewRedisRateLimitStore(client redis.Cmdable) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, prefix: DefaultRateLimitKeyPrefix}
}

// Allow implements RateLimitStore.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, cfg RateLimitConfig) (RateLimitDecision, error) {
	redisKey := s.prefix + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return RateLimitDecision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	resetIn := ttl.Val()
	if resetIn < 0 {
		// First hit of the window, or a counter that lost its expiry.
		if err := s.client.PExpire(ctx, redisKey, cfg.Window).Err(); err != nil {
			return RateLimitDecision{}, fmt.Errorf("rate limit %s: set expiry: %w", key, err)
		}
		resetIn = cfg.Window
	}

	count := incr.Val()
	if count > math.MaxInt32 {
		count = math.MaxInt32
	}
	return decide(int(count), cfg, resetIn), nil
}

// KeyFunc extracts a rate limit key from a request.
type KeyFunc func(r *http.Request) string

// ClientKey keys authenticated requests by user id and anonymous requests
// by client IP. Place the limiter after the auth middleware.
func ClientKey(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return "user:" + userID
	}
	return "ip:" + clientIP(r)
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit rejects requests over the limit with 429 and a Retry-After
// header. When the store fails the request is let through and the failure
// logged.
func RateLimit(store RateLimitStore, cfg RateLimitConfig, keyFunc KeyFunc, metrics *Metrics) func(http.Handler) http.Handler {
	limit := strconv.Itoa(cfg.Requests)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := store.Allow(r.Context(), keyFunc(r), cfg)
			if err != nil {
				slog.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					"path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				metrics.IncRateLimited(r.URL.Path)
				seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				writeJSONError(w, r, http.StatusTooManyRequests, ErrCodeRateLimited, "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
