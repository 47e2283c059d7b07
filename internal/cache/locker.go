package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("lock held by another instance")

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 基于 SETNX 的分布式锁，供 gocron 保证多实例下只有一个执行
type Locker struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ gocron.Locker = (*Locker)(nil)

func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, ttl: ttl}
}

func (l *Locker) Lock(ctx context.Context, key string) (gocron.Lock, error) {
	token := uuid.NewString()
	redisKey := "gocron:lock:" + key

	ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &redisLock{rdb: l.rdb, key: redisKey, token: token}, nil
}

type redisLock struct {
	rdb   *redis.Client
	key   string
	token string
}

func (r *redisLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, r.rdb, []string{r.key}, r.token).Err()
}
