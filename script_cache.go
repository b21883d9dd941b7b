package clarity

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ScriptCache 决定追踪脚本从远程还是本地缓存加载，并负责同步本地副本。
// 不持有任何请求间状态，每次调用都重新检查文件系统。
type ScriptCache struct {
	fs      afero.Fs
	fetcher Fetcher
	state   StateStore
	flusher Flusher
	logger  *zap.Logger

	baseURL    string
	dir        string
	publicPath string
	gzip       bool
}

// CacheOption 配置 ScriptCache。
type CacheOption func(*ScriptCache)

// WithLogger 设置日志。
func WithLogger(l *zap.Logger) CacheOption {
	return func(c *ScriptCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFlusher 设置脚本更新后的 cache-bust 通知。
func WithFlusher(f Flusher) CacheOption {
	return func(c *ScriptCache) {
		if f != nil {
			c.flusher = f
		}
	}
}

// WithGzip 是否额外写入 .gz 压缩副本。
func WithGzip(enabled bool) CacheOption {
	return func(c *ScriptCache) { c.gzip = enabled }
}

// WithCacheDir 设置文件存储中的缓存目录。
func WithCacheDir(dir string) CacheOption {
	return func(c *ScriptCache) {
		if dir != "" {
			c.dir = dir
		}
	}
}

// WithPublicPath 设置缓存目录对外的 URL 路径。
func WithPublicPath(p string) CacheOption {
	return func(c *ScriptCache) {
		if p != "" {
			c.publicPath = p
		}
	}
}

// WithBaseURL 覆盖远程脚本地址前缀。
func WithBaseURL(u string) CacheOption {
	return func(c *ScriptCache) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// NewScriptCache 创建缓存管理器。
// fs: 文件存储（外部传入，DI），生产环境使用 afero.NewOsFs()。
// fetcher: 远程下载。
// state: 读取 cache-bust token 的状态存储。
func NewScriptCache(fs afero.Fs, fetcher Fetcher, state StateStore, opts ...CacheOption) *ScriptCache {
	c := &ScriptCache{
		fs:         fs,
		fetcher:    fetcher,
		state:      state,
		flusher:    nopFlusher{},
		logger:     zap.NewNop(),
		baseURL:    RemoteBaseURL,
		dir:        DefaultCacheDir,
		publicPath: DefaultPublicPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LocalPath 返回本地缓存文件在文件存储中的路径。
func (c *ScriptCache) LocalPath() string {
	return filepath.Join(c.dir, ScriptFileName)
}

// ResolveScriptURL 返回页面应该引用的脚本地址。
// 任何下载或写入失败都会降级为远程地址，不会影响页面渲染。
// forceResync: 即使本地已有缓存，也重新下载并比较。
func (c *ScriptCache) ResolveScriptURL(ctx context.Context, cfg TrackingConfig, forceResync bool) string {
	remoteURL := c.baseURL + cfg.ProjectID

	// 未开启缓存时直接返回远程地址
	if !cfg.LocalCache {
		return remoteURL
	}

	dest := c.LocalPath()
	exists, err := afero.Exists(c.fs, dest)
	if err != nil {
		c.logger.Error("stat local tracking script failed", zap.String("path", dest), zap.Error(err))
		return remoteURL
	}

	if !exists || forceResync {
		if err := c.sync(ctx, remoteURL, dest, exists); err != nil {
			return remoteURL
		}
	}

	return c.localURL(ctx)
}

// sync 下载远程脚本，与本地比较后写入。
// 失败时已记录日志，调用方只需降级。
func (c *ScriptCache) sync(ctx context.Context, remoteURL, dest string, exists bool) error {
	data, err := c.fetcher.Fetch(ctx, remoteURL)
	if err != nil {
		c.logger.Error("fetch tracking script failed", zap.String("url", remoteURL), zap.Error(err))
		return err
	}

	if exists {
		local, err := afero.ReadFile(c.fs, dest)
		if err == nil && SameContent(local, data) {
			// 内容未变化，不写盘也不刷新 token
			c.logger.Debug("locally cached tracking script is up to date", zap.String("path", dest))
			c.syncCompressed(dest, data, false)
			return nil
		}
	}

	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		err = fmt.Errorf("%w: create %s: %w", ErrFilesystem, c.dir, err)
		c.logger.Error("prepare cache directory failed", zap.String("dir", c.dir), zap.Error(err))
		return err
	}
	if err := writeReplacing(c.fs, dest, data); err != nil {
		c.logger.Error("save tracking script failed", zap.String("path", dest), zap.Error(err))
		return err
	}

	c.syncCompressed(dest, data, true)

	if !exists {
		// 新文件的 URL 尚未被任何页面引用，无需刷新
		c.logger.Info("locally cached tracking script has been saved", zap.String("path", dest))
		return nil
	}

	c.logger.Info("locally cached tracking script has been updated", zap.String("path", dest))
	if err := c.flusher.Flush(ctx); err != nil {
		c.logger.Warn("flush cache-bust token failed", zap.Error(err))
	}
	return nil
}

// syncCompressed 让 .gz 副本与压缩开关保持一致。
// 关闭压缩时删除遗留副本；开启时在内容变化或副本缺失时写入。
// .gz 副本失败不影响主文件。
func (c *ScriptCache) syncCompressed(dest string, data []byte, changed bool) {
	gzPath := dest + ".gz"
	exists, err := afero.Exists(c.fs, gzPath)
	if err != nil {
		c.logger.Warn("stat compressed tracking script failed", zap.String("path", gzPath), zap.Error(err))
		return
	}

	if !c.gzip {
		if exists {
			if err := c.fs.Remove(gzPath); err != nil {
				c.logger.Warn("remove stale compressed tracking script failed", zap.String("path", gzPath), zap.Error(err))
			}
		}
		return
	}
	if exists && !changed {
		return
	}

	gz, err := GzipContent(data)
	if err == nil {
		err = writeReplacing(c.fs, gzPath, gz)
	}
	if err != nil {
		c.logger.Warn("save compressed tracking script failed", zap.String("path", gzPath), zap.Error(err))
	}
}

func (c *ScriptCache) localURL(ctx context.Context) string {
	token, err := CacheBustToken(ctx, c.state)
	if err != nil {
		c.logger.Warn("read cache-bust token failed", zap.Error(err))
	}
	return path.Join(c.publicPath, ScriptFileName) + "?" + token
}

// Purge 删除整个本地缓存目录。目录不存在时什么都不做。
func (c *ScriptCache) Purge(ctx context.Context) error {
	ok, err := afero.DirExists(c.fs, c.dir)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrFilesystem, c.dir, err)
	}
	if !ok {
		return nil
	}

	if err := c.fs.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("%w: remove %s: %w", ErrFilesystem, c.dir, err)
	}

	if err := c.flusher.Flush(ctx); err != nil {
		c.logger.Warn("flush cache-bust token failed", zap.Error(err))
	}
	c.logger.Info("local tracking script cache has been purged", zap.String("dir", c.dir))
	return nil
}

// writeReplacing 先写临时文件再重命名，避免留下不完整的文件。
// 并发写入同样内容时，后完成的一方覆盖前者，结果一致。
func writeReplacing(fs afero.Fs, dest string, data []byte) error {
	tmp, err := afero.TempFile(fs, filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrFilesystem, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %w", ErrFilesystem, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %w", ErrFilesystem, tmpName, err)
	}
	if err := fs.Rename(tmpName, dest); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("%w: rename to %s: %w", ErrFilesystem, dest, err)
	}
	return nil
}
