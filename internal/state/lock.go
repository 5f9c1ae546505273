package state

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/acarcay/voice-agent/pkg/errors"
	"github.com/acarcay/voice-agent/pkg/logger"
)

const lockPollInterval = 100 * time.Millisecond

// releaseScript deletes the lock only when the caller still holds it, so a
// lock that expired and was re-acquired elsewhere is left untouched.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX over a shared Redis instance,
// which gives mutual exclusion across processes and machines.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewRedisLocker constructs a locker whose locks auto-expire after ttl.
func NewRedisLocker(client *redis.Client, ttl time.Duration, lg *logger.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl, logger: lg}
}

func lockKey(resource string) string { return "lock:" + resource }

// Acquire blocks until the lock is held or wait elapses.
func (l *RedisLocker) Acquire(ctx context.Context, resource string, wait time.Duration) (*Lock, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, lockKey(resource), token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("state: lock acquire %s: %w", resource, err)
		}
		if ok {
			return &Lock{Resource: resource, Token: token, AcquiredAt: time.Now().UTC(), TTL: l.ttl}, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("state: lock %s: %w", resource, apperrors.ErrLockTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// Release drops the lock if still held. Expired locks are a no-op.
func (l *RedisLocker) Release(ctx context.Context, lock *Lock) {
	if lock == nil {
		return
	}
	if err := releaseScript.Run(ctx, l.client, []string{lockKey(lock.Resource)}, lock.Token).Err(); err != nil && err != redis.Nil {
		l.logger.Warn("lock release failed", zap.String("resource", lock.Resource), zap.Error(err))
	}
}
