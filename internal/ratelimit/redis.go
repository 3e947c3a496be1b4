package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// defaultRedisTimeout bounds every Redis round-trip independently of the
// caller's deadline. The fail-open policy only works if a slow limiter cannot
// stall the authorization decision.
const defaultRedisTimeout = 500 * time.Millisecond

// RedisStore is a sliding-window counter backed by Redis sorted sets, shared
// across all instances of the service. Any communication failure fails open:
// the request is allowed with full quota reported, the error is logged, and
// the onError hook (metrics) is invoked.
type RedisStore struct {
	rdb     redis.UniversalClient
	timeout time.Duration
	logger  *slog.Logger
	onError func()
}

// NewRedisStore creates a RedisStore. A nil logger is replaced with
// slog.Default(); onError may be nil.
func NewRedisStore(rdb redis.UniversalClient, timeout time.Duration, logger *slog.Logger, onError func()) *RedisStore {
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{rdb: rdb, timeout: timeout, logger: logger, onError: onError}
}

// Check trims expired members, counts the window, and records the request when
// quota remains. A denied check records nothing.
func (s *RedisStore) Check(ctx context.Context, key string, limit int, windowDur time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now()
	count, err := s.windowCount(ctx, key, now, windowDur)
	if err != nil {
		return s.failOpen(key, limit, err), nil
	}

	if count >= int64(limit) {
		return Result{Allowed: false, Remaining: 0, ResetAt: now.Add(windowDur)}, nil
	}

	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, key, windowDur)
	if _, err := pipe.Exec(ctx); err != nil {
		return s.failOpen(key, limit, err), nil
	}

	return Result{
		Allowed:   true,
		Remaining: limit - int(count) - 1,
		ResetAt:   now.Add(windowDur),
	}, nil
}

// Peek counts the window without recording the request.
func (s *RedisStore) Peek(ctx context.Context, key string, limit int, windowDur time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now()
	count, err := s.windowCount(ctx, key, now, windowDur)
	if err != nil {
		return s.failOpen(key, limit, err), nil
	}

	if count >= int64(limit) {
		return Result{Allowed: false, Remaining: 0, ResetAt: now.Add(windowDur)}, nil
	}
	return Result{Allowed: true, Remaining: limit - int(count), ResetAt: now.Add(windowDur)}, nil
}

// windowCount trims members older than the window and returns the live count.
func (s *RedisStore) windowCount(ctx context.Context, key string, now time.Time, windowDur time.Duration) (int64, error) {
	cutoff := strconv.FormatInt(now.Add(-windowDur).UnixNano(), 10)

	pipe := s.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff)
	card := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return card.Val(), nil
}

// failOpen converts a backend error into an allow-with-full-quota result.
func (s *RedisStore) failOpen(key string, limit int, err error) Result {
	s.logger.Warn("rate limit backend unreachable, failing open", "key", key, "error", err)
	if s.onError != nil {
		s.onError()
	}
	return Result{Allowed: true, Remaining: limit, ResetAt: time.Now()}
}
