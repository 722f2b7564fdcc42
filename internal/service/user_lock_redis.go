package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sandeepkv93/tenant-session-core/internal/security"
)

var ErrLockNotAcquired = errors.New("user lock not acquired")

var releaseUserLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisUserLocker coordinates the per-user lock across instances with a
// SET NX PX token. Release deletes the key only while the token still matches.
type RedisUserLocker struct {
	client   redis.UniversalClient
	prefix   string
	ttl      time.Duration
	wait     time.Duration
	retryGap time.Duration
}

func NewRedisUserLocker(client redis.UniversalClient, prefix string, ttl, wait time.Duration) *RedisUserLocker {
	if prefix == "" {
		prefix = "user_lock"
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if wait <= 0 {
		wait = 3 * time.Second
	}
	return &RedisUserLocker{
		client:   client,
		prefix:   prefix,
		ttl:      ttl,
		wait:     wait,
		retryGap: 25 * time.Millisecond,
	}
}

func (l *RedisUserLocker) Lock(ctx context.Context, scope string, userID uuid.UUID) (func(), error) {
	if l.client == nil {
		return func() {}, nil
	}
	token, err := security.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	key := l.key(scope, userID)
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire user lock: %w", err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
				defer cancel()
				_ = releaseUserLockScript.Run(releaseCtx, l.client, []string{key}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockNotAcquired
		}
		timer := time.NewTimer(l.retryGap)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *RedisUserLocker) key(scope string, userID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", l.prefix, scope, userID.String())
}
