package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/engagement/config"
)

// ErrHeld 锁已被其他实例持有
var ErrHeld = errors.New("lock held by another owner")

// Unlock 释放锁；只会删除自己持有的那把
type Unlock func(ctx context.Context) error

// Locker 单实例互斥（定时任务不允许重叠执行）
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (Unlock, error)
}

// compare-and-delete，防止 TTL 过期后误删别人刚拿到的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	client redis.Cmdable
}

// NewRedisLocker 基于 SET NX PX 的分布式锁
func NewRedisLocker(client redis.Cmdable) Locker { return &redisLocker{client: client} }

func (l *redisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Unlock, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}, nil
}

type localLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

// NewLocalLocker 进程内锁，未配置 redis 时使用；ttl 到期视为释放
func NewLocalLocker() Locker { return &localLocker{held: make(map[string]time.Time)} }

func (l *localLocker) TryLock(_ context.Context, key string, ttl time.Duration) (Unlock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if exp, ok := l.held[key]; ok && time.Now().Before(exp) {
		return nil, ErrHeld
	}
	exp := time.Now().Add(ttl)
	l.held[key] = exp
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[key]; ok && cur.Equal(exp) {
			delete(l.held, key)
		}
		return nil
	}, nil
}

// FromConfig 配了 redis 用分布式锁，否则退化为进程内锁；返回的 close 释放 redis 连接
func FromConfig(ctx context.Context, cfg config.RedisConfig) (Locker, func() error, error) {
	if cfg.Addr == "" {
		return NewLocalLocker(), func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return NewRedisLocker(client), client.Close, nil
}
