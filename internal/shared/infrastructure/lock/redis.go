package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockLost is reported when a held key expired or was taken over.
var ErrLockLost = errors.New("lock lost")

const (
	// DefaultLockTTL bounds how long a crashed holder can block a key. A live
	// holder renews it every third of the TTL.
	DefaultLockTTL = 2 * time.Minute
	// DefaultRetryInterval is how often a waiter polls a taken key.
	DefaultRetryInterval = 100 * time.Millisecond
	keyPrefix            = "rendezvous:lock:"
)

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// extendScript resets the expiry only if the key still carries our token.
var extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker is a Locker shared by every process using the same Redis.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
	logger *slog.Logger
}

// NewRedisLocker creates a RedisLocker with default TTL and retry interval.
func NewRedisLocker(client *redis.Client, logger *slog.Logger) *RedisLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{client: client, ttl: DefaultLockTTL, retry: DefaultRetryInterval, logger: logger}
}

// WithTTL overrides the lock expiry.
func (l *RedisLocker) WithTTL(ttl time.Duration) *RedisLocker {
	l.ttl = ttl
	return l
}

// Acquire polls SET NX until the key is ours or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	fullKey := keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	renewCtx, stopRenew := context.WithCancel(context.Background())
	renewed := make(chan struct{})
	go func() {
		defer close(renewed)
		extend := func(ctx context.Context) (bool, error) {
			n, err := extendScript.Run(ctx, l.client, []string{fullKey}, token, l.ttl.Milliseconds()).Int()
			return n == 1, err
		}
		keepAlive(renewCtx, l.ttl/3, extend, func(err error) {
			l.logger.Warn("failed to renew lock", "key", key, "error", err)
		})
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopRenew()
			<-renewed
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{fullKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				l.logger.Warn("failed to release lock", "key", key, "error", err)
			}
		})
	}, nil
}

// keepAlive calls extend every interval until ctx is done or extend reports
// the key is no longer held. Errors go to report; a lost key is reported as
// ErrLockLost and ends the loop.
func keepAlive(ctx context.Context, interval time.Duration, extend func(context.Context) (bool, error), report func(error)) {
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		held, err := extend(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			report(err)
			continue
		}
		if !held {
			report(ErrLockLost)
			return
		}
	}
}
