package clarity

import "time"

// prefix 目前使用的 Redis Key 前缀
var prefix = "btt-clarity:"

// SetPrefix 设置全局 Redis Key 前缀。
// 这应该在任何其他操作之前调用。
func SetPrefix(p string) {
	prefix = p
	if len(prefix) > 0 && prefix[len(prefix)-1] != ':' {
		prefix += ":"
	}
}

// Suffix defs
const (
	SuffixCacheBust = "css_js_query_string" // 静态资源 Query String
	SuffixFlushes   = "flushes"             // 缓存刷新通知
)

// KeyCacheBust 返回 cache-bust token 的 Redis Key。
func KeyCacheBust() string {
	return prefix + SuffixCacheBust
}

// KeyFlushes 返回刷新通知的 Redis Stream Key。
func KeyFlushes() string {
	return prefix + SuffixFlushes
}

const (
	// RemoteBaseURL Clarity 脚本的远程地址前缀，后接 ProjectID。
	RemoteBaseURL = "https://www.clarity.ms/tag/"

	// DashboardBaseURL Clarity 嵌入式仪表盘地址。
	DashboardBaseURL = "https://clarity.microsoft.com/embed"

	// FrontToken 在页面列表中代表首页。
	FrontToken = "<front>"

	// ScriptFileName 本地缓存的脚本文件名。
	ScriptFileName = "clarity.js"

	// DefaultCacheDir 本地缓存目录（相对于文件存储根目录）。
	DefaultCacheDir = "clarity"

	// DefaultPublicPath 本地缓存目录对外暴露的 URL 路径。
	DefaultPublicPath = "/files/clarity"

	// DefaultCacheBustToken 状态存储中没有 token 时使用。
	DefaultCacheBustToken = "0"

	// DefaultFetchTimeout 下载远程脚本的 HTTP 超时时间。
	DefaultFetchTimeout = 10 * time.Second
)

// Stream 事件类型
const (
	EventFlush = "flush"
)

// FlushMessage Redis Stream 消息载荷
type FlushMessage struct {
	Event     string `json:"event"`     // 事件类型
	Reason    string `json:"reason"`    // 触发原因
	Token     string `json:"token"`     // 新的 cache-bust token
	Timestamp int64  `json:"timestamp"` // 时间戳
}
