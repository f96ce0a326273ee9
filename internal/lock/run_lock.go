package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultKey guards the pre-merge run.
const DefaultKey = "premerge:run-lock"

// ErrHeld is returned when another process holds the lock.
var ErrHeld = errors.New("run lock held by another process")

// Lease is a held lock. Release is safe to call more than once.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker acquires the cross-process run lock.
type Locker interface {
	Acquire(ctx context.Context) (Lease, error)
}

// releaseScript deletes the key only if it still carries our token, so a
// lease that outlived its TTL cannot drop another holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX.
type RedisLocker struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisLocker(client redis.UniversalClient, key string, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{client: client, key: key, ttl: ttl, logger: logger}
}

func (l *RedisLocker) Acquire(ctx context.Context) (Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}
	l.logger.Debug("run lock acquired", zap.String("key", l.key), zap.Duration("ttl", l.ttl))
	return &redisLease{locker: l, token: token}, nil
}

type redisLease struct {
	locker   *RedisLocker
	token    string
	released bool
}

func (r *redisLease) Release(ctx context.Context) error {
	if r.released {
		return nil
	}
	r.released = true
	deleted, err := releaseScript.Run(ctx, r.locker.client, []string{r.locker.key}, r.token).Int()
	if err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	if deleted == 0 {
		r.locker.logger.Warn("run lock expired before release", zap.String("key", r.locker.key))
	}
	return nil
}

// NopLocker always succeeds. It is used when Redis is not configured.
type NopLocker struct{}

func (NopLocker) Acquire(context.Context) (Lease, error) {
	return nopLease{}, nil
}

type nopLease struct{}

func (nopLease) Release(context.Context) error { return nil }

// New returns a RedisLocker for client, or a NopLocker when client is nil.
func New(client *redis.Client, ttl time.Duration, logger *zap.Logger) Locker {
	if client == nil {
		return NopLocker{}
	}
	return NewRedisLocker(client, DefaultKey, ttl, logger)
}
