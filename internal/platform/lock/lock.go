// Package lock serializes work on one key across server instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultTTL  = 30 * time.Second
	defaultWait = 5 * time.Second
)

// Locker acquires a lock on key. The returned release func is always
// non-nil and safe to call once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// NoopLocker never blocks. Used when Redis is not configured.
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// RedisLocker is best-effort: when the lock cannot be obtained in time or
// Redis is unavailable it logs and lets the caller proceed unlocked, relying
// on the database constraints for correctness.
type RedisLocker struct {
	client *redislock.Client
	logger zerolog.Logger
	ttl    time.Duration
	wait   time.Duration
}

func NewRedisLocker(rdb redislock.RedisClient, logger zerolog.Logger) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(rdb),
		logger: logger,
		ttl:    defaultTTL,
		wait:   defaultWait,
	}
}

// Key is the Redis key guarding key.
func Key(key string) string {
	return "lock:" + key
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	noop := func() {}
	if err := ctx.Err(); err != nil {
		return noop, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	lk, err := l.client.Obtain(waitCtx, Key(key), l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(100 * time.Millisecond),
	})
	switch {
	case errors.Is(err, redislock.ErrNotObtained):
		l.logger.Warn().Str("key", key).Msg("could not obtain redis lock; proceeding without lock")
		return noop, nil
	case err != nil:
		if ctx.Err() != nil {
			return noop, ctx.Err()
		}
		l.logger.Warn().Err(err).Str("key", key).Msg("error obtaining redis lock; proceeding without lock")
		return noop, nil
	}

	return func() {
		// Release with a fresh context so a cancelled request still frees the key.
		relCtx, relCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer relCancel()
		if err := lk.Release(relCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn().Err(err).Str("key", key).Msg("failed to release redis lock")
		}
	}, nil
}
