package clarity

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Flusher 通知宿主更换静态资源的 Query String，强制浏览器重新获取。
type Flusher interface {
	Flush(ctx context.Context) error
}

// FlusherFunc 允许普通函数作为 Flusher。
type FlusherFunc func(ctx context.Context) error

func (f FlusherFunc) Flush(ctx context.Context) error { return f(ctx) }

type nopFlusher struct{}

func (nopFlusher) Flush(context.Context) error { return nil }

// flushScript 原子更新 token 并写入通知 Stream。
// 整数 token 递增；宿主写入的非整数 token（如 base36 时间戳）替换为 ARGV[3]，
// 与旧值相同时追加后缀，保证 token 一定变化。
var flushScript = redis.NewScript(`
	local tokenKey = KEYS[1]
	local streamKey = KEYS[2]

	local reason = ARGV[1]
	local timestamp = ARGV[2]
	local fallback = ARGV[3]

	local current = redis.call('GET', tokenKey)
	local token
	if current == false or string.match(current, '^%-?%d+$') then
		token = tostring(redis.call('INCR', tokenKey))
	else
		token = fallback
		if token == current then
			token = token .. '0'
		end
		redis.call('SET', tokenKey, token)
	end

	local data = string.format('{"event":"flush","reason":%s,"token":"%s","timestamp":%s}', reason, token, timestamp)
	redis.call('XADD', streamKey, 'MAXLEN', '~', '1000', '*', 'data', data)

	return token
`)

// RedisFlusher 基于 Redis 的 Flusher。
type RedisFlusher struct {
	rdb    *redis.Client
	reason string
}

// NewRedisFlusher 创建 Flusher。
// client: Redis 客户端实例（外部传入，DI）。
// reason: 写入通知中的来源描述。
func NewRedisFlusher(client *redis.Client, reason string) *RedisFlusher {
	return &RedisFlusher{
		rdb:    client,
		reason: reason,
	}
}

// Flush 更新 token 并发布通知。
func (f *RedisFlusher) Flush(ctx context.Context) error {
	_, err := f.FlushToken(ctx)
	return err
}

// FlushToken 与 Flush 相同，但返回新的 token。
func (f *RedisFlusher) FlushToken(ctx context.Context) (string, error) {
	reasonJSON, err := json.Marshal(f.reason)
	if err != nil {
		return "", fmt.Errorf("marshal flush reason failed: %w", err)
	}

	keys := []string{
		KeyCacheBust(),
		KeyFlushes(),
	}
	now := time.Now()
	argv := []any{
		string(reasonJSON),                // ARGV[1] Reason (JSON)
		strconv.FormatInt(now.Unix(), 10), // ARGV[2] Timestamp
		strconv.FormatInt(now.Unix(), 36), // ARGV[3] 非整数 token 的替换值
	}

	token, err := flushScript.Run(ctx, f.rdb, keys, argv...).Text()
	if err != nil {
		return "", fmt.Errorf("flush cache-bust token failed: %w", err)
	}
	return token, nil
}
