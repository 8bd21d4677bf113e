package lock

import (
	"context"
	"log"
	"time"

	"signet/internal/usecase"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var redisReleaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

const (
	lockKeyPrefix    = "signet:lock:document:"
	defaultLockTTL   = 30 * time.Second
	acquireRetryWait = 50 * time.Millisecond
)

// RedisLocker serializes the per-document critical section across
// processes with SET NX and a token-checked release. Holders that die
// are cleared by the TTL.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) Lock(ctx context.Context, documentID string) (func(), error) {
	key := lockKeyPrefix + documentID
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-time.After(acquireRetryWait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	unlock := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := redisReleaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			log.Printf("lock: release %s: %v", key, err)
		}
	}
	return unlock, nil
}

var _ usecase.DocumentLocker = (*RedisLocker)(nil)
