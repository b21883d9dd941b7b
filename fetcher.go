package clarity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrTransport 远程脚本下载失败。
	ErrTransport = errors.New("transport error")
	// ErrFilesystem 本地缓存目录或文件写入失败。
	ErrFilesystem = errors.New("filesystem error")
)

// Fetcher 下载远程内容。
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc 允许普通函数作为 Fetcher。
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

// HTTPFetcher 基于 net/http 的 Fetcher。
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher 创建 Fetcher。
// client 为 nil 时使用 DefaultFetchTimeout 超时的默认客户端。
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return &HTTPFetcher{client: client}
}

// NewHTTPFetcherTimeout 使用指定超时创建 Fetcher。
func NewHTTPFetcherTimeout(timeout time.Duration) *HTTPFetcher {
	return NewHTTPFetcher(&http.Client{Timeout: timeout})
}

// Fetch 执行 GET 请求，非 2xx 状态同样视为传输错误。
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrTransport, resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	return data, nil
}
