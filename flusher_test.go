package clarity

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

func TestRedisStateStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetPrefix("teststate")
	ctx := context.Background()

	store := NewRedisStateStore(rdb)

	// 不存在时返回默认值
	token, err := CacheBustToken(ctx, store)
	if err != nil || token != DefaultCacheBustToken {
		t.Errorf("Expected default token, got %q (err: %v)", token, err)
	}

	mr.Set("teststate:css_js_query_string", "s9k2")
	token, err = CacheBustToken(ctx, store)
	if err != nil || token != "s9k2" {
		t.Errorf("Expected s9k2, got %q (err: %v)", token, err)
	}

	// Redis 不可用时降级为默认值并返回错误
	mr.Close()
	token, err = CacheBustToken(ctx, store)
	if err == nil {
		t.Errorf("Expected error when redis is down")
	}
	if token != DefaultCacheBustToken {
		t.Errorf("Expected default token on error, got %q", token)
	}
}

func TestRedisFlusher(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetPrefix("testflush:")
	ctx := context.Background()

	f := NewRedisFlusher(rdb, `tracking "script" updated`)

	t1, err := f.FlushToken(ctx)
	if err != nil {
		t.Fatalf("FlushToken failed: %v", err)
	}
	if err := f.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if t1 != "1" {
		t.Errorf("Expected first token 1, got %s", t1)
	}

	// token 单调递增
	got, _ := rdb.Get(ctx, KeyCacheBust()).Result()
	if got != "2" {
		t.Errorf("Expected token 2, got %s", got)
	}

	// Stream 中有两条通知
	msgs, err := rdb.XRange(ctx, KeyFlushes(), "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 stream entries, got %d", len(msgs))
	}

	var msg FlushMessage
	if err := json.Unmarshal([]byte(msgs[1].Values["data"].(string)), &msg); err != nil {
		t.Fatalf("Unmarshal stream data failed: %v", err)
	}
	if msg.Event != EventFlush || msg.Token != "2" || msg.Reason != `tracking "script" updated` {
		t.Errorf("Unexpected message %+v", msg)
	}
	if msg.Timestamp == 0 {
		t.Errorf("Expected timestamp")
	}

	// ScriptCache 读到新的 token
	token, _ := CacheBustToken(ctx, NewRedisStateStore(rdb))
	if token != "2" {
		t.Errorf("Expected token 2 from state store, got %s", token)
	}
}

func TestRedisFlusher_HostOwnedToken(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetPrefix("testhost:")
	ctx := context.Background()

	// 宿主写入的 base36 token 不是整数
	mr.Set(KeyCacheBust(), "s9k2")

	remote := &fakeRemote{body: []byte("js-v1")}
	c := NewScriptCache(afero.NewMemMapFs(), remote, NewRedisStateStore(rdb),
		WithFlusher(NewRedisFlusher(rdb, "tracking script updated")))

	first := c.ResolveScriptURL(ctx, cachedConfig(), false)
	if first != "/files/clarity/clarity.js?s9k2" {
		t.Fatalf("Expected host token, got %s", first)
	}

	remote.body = []byte("js-v2")
	second := c.ResolveScriptURL(ctx, cachedConfig(), true)
	if second == first {
		t.Fatalf("Content changed but URL token unchanged: %s", second)
	}

	token, _ := rdb.Get(ctx, KeyCacheBust()).Result()
	if second != "/files/clarity/clarity.js?"+token {
		t.Errorf("Expected URL to carry stored token %s, got %s", token, second)
	}

	// 再次刷新仍然变化
	f := NewRedisFlusher(rdb, "again")
	next, err := f.FlushToken(ctx)
	if err != nil {
		t.Fatalf("FlushToken failed: %v", err)
	}
	if next == token {
		t.Errorf("Expected a new token, got %s again", next)
	}
}

func TestRedisFlusher_Concurrent(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetPrefix("testflushc:")
	ctx := context.Background()

	f := NewRedisFlusher(rdb, "concurrent")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.Flush(ctx); err != nil {
				t.Errorf("Flush failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := rdb.Get(ctx, KeyCacheBust()).Result()
	if got != "20" {
		t.Errorf("Expected token 20, got %s", got)
	}
}

func TestFlushWatcher(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetPrefix("testwatch:")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewRedisFlusher(rdb, "purge")
	if err := f.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	// 非法消息会被跳过
	rdb.XAdd(ctx, &redis.XAddArgs{Stream: KeyFlushes(), Values: map[string]any{"data": "not-json"}})
	rdb.XAdd(ctx, &redis.XAddArgs{Stream: KeyFlushes(), Values: map[string]any{"other": "x"}})

	w := NewFlushWatcher(rdb, nil)
	w.block = 100 * time.Millisecond

	received := make(chan FlushMessage, 10)
	done := make(chan error, 1)
	go func() {
		// 从头读取，避免与发布产生竞态
		done <- w.Watch(ctx, "0", func(m FlushMessage) { received <- m })
	}()

	select {
	case m := <-received:
		if m.Token != "1" || m.Reason != "purge" {
			t.Errorf("Unexpected message %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for first flush")
	}

	if err := f.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	select {
	case m := <-received:
		if m.Token != "2" {
			t.Errorf("Expected token 2, got %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for second flush")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watcher did not stop")
	}
}
