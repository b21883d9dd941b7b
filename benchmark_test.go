package clarity

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

func BenchmarkShouldTrack(b *testing.B) {
	e := NewEvaluator(MapAlias{"/node/1": "/blog/first"}, NewGlobMatcher("/"))
	cfg := TrackingConfig{
		PathMode: PathExcludeListed,
		Pages:    []string{"/admin", "/admin/*", "/batch", "/node/add*", "/node/*/*", "/user/*/*"},
		RoleMode: RoleExcludeSelected,
		Roles:    []string{"administrator"},
	}
	req := Request{Path: "/node/1", Account: Account{Roles: []string{"authenticated"}}}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		e.ForRequest(cfg, req).ShouldTrack()
	}
}

func BenchmarkResolveScriptURL(b *testing.B) {
	// Setup Redis and cache
	mr, _ := miniredis.Run()
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	remote := FetcherFunc(func(context.Context, string) ([]byte, error) {
		return []byte("clarity"), nil
	})
	c := NewScriptCache(afero.NewMemMapFs(), remote, NewRedisStateStore(rdb))
	cfg := TrackingConfig{ProjectID: "bench", LocalCache: true}

	// 预热：首次下载
	c.ResolveScriptURL(ctx, cfg, false)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		c.ResolveScriptURL(ctx, cfg, false)
	}
}
