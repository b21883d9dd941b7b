package clarity

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// StateStore 是宿主的键值状态存储，仅用于读取 cache-bust token。
type StateStore interface {
	// Get 返回 key 对应的值；key 不存在时 ok 为 false 且 err 为 nil。
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}

// RedisStateStore 基于 Redis 的状态存储。
type RedisStateStore struct {
	rdb *redis.Client
}

// NewRedisStateStore 创建状态存储。
// client: Redis 客户端实例（外部传入，DI）。
func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{rdb: client}
}

func (s *RedisStateStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get state %s failed: %w", key, err)
	}
	return val, true, nil
}

// MapStateStore 内存状态存储，适合测试或单进程部署。
type MapStateStore map[string]string

func (m MapStateStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

// CacheBustToken 读取当前 token，缺失或读取失败时返回 DefaultCacheBustToken。
func CacheBustToken(ctx context.Context, store StateStore) (string, error) {
	if store == nil {
		return DefaultCacheBustToken, nil
	}
	token, ok, err := store.Get(ctx, KeyCacheBust())
	if err != nil {
		return DefaultCacheBustToken, err
	}
	if !ok || token == "" {
		return DefaultCacheBustToken, nil
	}
	return token, nil
}
