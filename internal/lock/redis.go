package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrBusy = errors.New("resource is busy, retry later")

// RedisLocker serializes writers per key across every instance sharing the
// same redis.
type RedisLocker struct {
	client *redis.Client
	locker *redislock.Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

func NewRedisLocker(addr string, password string, db int, ttl time.Duration, log logrus.FieldLogger) *RedisLocker {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		client: client,
		locker: redislock.New(client),
		ttl:    ttl,
		log:    log,
	}
}

func (r *RedisLocker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisLocker) Close() error {
	return r.client.Close()
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.ExponentialBackoff(16*time.Millisecond, 512*time.Millisecond), 20),
	}
	l, err := r.locker.Obtain(ctx, "posledger:lock:"+key, r.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%s: %w", key, ErrBusy)
	}
	if err != nil {
		return nil, err
	}

	return func() {
		// The request context may already be cancelled here.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.log.WithError(err).WithField("key", key).Warn("failed to release lock")
		}
	}, nil
}
