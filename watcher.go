package clarity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// FlushWatcher 监听刷新通知 Stream。
// 宿主的其他进程可借此清理进程内缓存的静态资源 URL。
type FlushWatcher struct {
	rdb    *redis.Client
	logger *zap.Logger
	block  time.Duration
}

// NewFlushWatcher 创建监听器。
// client: Redis 客户端实例（外部传入，DI）。
func NewFlushWatcher(client *redis.Client, logger *zap.Logger) *FlushWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlushWatcher{
		rdb:    client,
		logger: logger,
		block:  5 * time.Second,
	}
}

// Watch 开始监听，收到的每条通知都会交给 fn 处理。
// 它是阻塞的，应在 goroutine 中运行。
// fromID: 起始消息 ID，"$" 表示只读取新消息。
func (w *FlushWatcher) Watch(ctx context.Context, fromID string, fn func(FlushMessage)) error {
	lastID := fromID
	if lastID == "" {
		lastID = "$"
	}
	streamKey := KeyFlushes()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// 阻塞读取
		streams, err := w.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{streamKey, lastID},
			Block:   w.block,
			Count:   10,
		}).Result()

		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn("watch flushes failed", zap.Error(err))
			// 退避等待，防止死循环刷日志
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.block):
				continue
			}
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID

				dataStr, ok := msg.Values["data"].(string)
				if !ok {
					continue
				}

				var flushMsg FlushMessage
				if err := json.Unmarshal([]byte(dataStr), &flushMsg); err != nil {
					w.logger.Debug("skip malformed flush message", zap.String("id", msg.ID), zap.Error(err))
					continue
				}
				if flushMsg.Event != EventFlush {
					continue
				}
				fn(flushMsg)
			}
		}
	}
}
