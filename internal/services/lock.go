package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "sync:lock:"

// releaseScript deletes the lock only if the caller still holds it, so a
// pass that outlived its TTL cannot release a lock someone else acquired.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// UserLocker serializes processing passes per user. Two devices triggering
// a sync at the same time must not interleave replays of the same queue.
type UserLocker interface {
	// Acquire takes the user's lock, returning a release func, or
	// ErrSyncInProgress when another pass holds it.
	Acquire(ctx context.Context, userID uuid.UUID) (func(), error)
}

// RedisUserLocker implements UserLocker with a TTL-bounded SETNX token.
// The TTL guards against a crashed holder wedging the queue forever.
type RedisUserLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisUserLocker(client *redis.Client, ttl time.Duration) *RedisUserLocker {
	return &RedisUserLocker{client: client, ttl: ttl}
}

func (l *RedisUserLocker) Acquire(ctx context.Context, userID uuid.UUID) (func(), error) {
	key := lockKeyPrefix + userID.String()
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !ok {
		return nil, ErrSyncInProgress
	}

	release := func() {
		l.client.Eval(context.Background(), releaseScript, []string{key}, token)
	}
	return release, nil
}
