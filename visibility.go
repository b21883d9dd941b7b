package clarity

import (
	"context"
	"strings"
)

// Evaluator 判定当前请求是否需要输出追踪脚本。
// 本身无状态，可在多个请求间共享。
type Evaluator struct {
	aliases AliasResolver
	matcher PathMatcher
}

// NewEvaluator 创建判定器。
// aliases: 别名解析（外部传入，DI），为 nil 时不解析。
// matcher: 路径匹配器（外部传入，DI），为 nil 时使用以 "/" 为首页的 GlobMatcher。
func NewEvaluator(aliases AliasResolver, matcher PathMatcher) *Evaluator {
	if aliases == nil {
		aliases = IdentityAlias{}
	}
	if matcher == nil {
		matcher = NewGlobMatcher("/")
	}
	return &Evaluator{
		aliases: aliases,
		matcher: matcher,
	}
}

// ShouldTrack 是无缓存的一次性判定。
func (e *Evaluator) ShouldTrack(cfg TrackingConfig, req Request) bool {
	return RoleMatch(cfg, req.Account) && e.PageMatch(cfg, req.Path)
}

// PageMatch 路径判定。
func (e *Evaluator) PageMatch(cfg TrackingConfig, path string) bool {
	pages := lowerPatterns(cfg.Pages)
	if len(pages) == 0 {
		return true
	}

	var include bool
	switch cfg.PathMode {
	case PathExcludeListed:
		include = false
	case PathIncludeListed:
		include = true
	default:
		// 未知模式一律不追踪
		return false
	}

	lowerPath := strings.ToLower(path)
	alias := strings.ToLower(e.aliases.AliasOf(path))
	match := e.matcher.MatchPath(alias, pages) ||
		(lowerPath != alias && e.matcher.MatchPath(lowerPath, pages))

	// 排除模式：除命中页面外全部追踪；包含模式：仅追踪命中页面
	return !(include != match)
}

// RoleMatch 角色判定。角色 ID 大小写敏感。
func RoleMatch(cfg TrackingConfig, account Account) bool {
	if len(cfg.Roles) == 0 {
		return true
	}

	enabled := cfg.RoleMode == RoleExcludeSelected
	for _, role := range account.Roles {
		if containsRole(cfg.Roles, role) {
			enabled = !enabled
			break
		}
	}
	return enabled
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func lowerPatterns(pages []string) []string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, strings.ToLower(p))
	}
	return out
}

// ForRequest 创建一个请求级别的判定器。
func (e *Evaluator) ForRequest(cfg TrackingConfig, req Request) *RequestVisibility {
	return &RequestVisibility{
		eval: e,
		cfg:  cfg,
		req:  req,
	}
}

// RequestVisibility 缓存单个请求内的判定结果。
// 配置与路径在请求内不会变化，因此只计算一次。
// 与 Getter 一样按请求创建，不加锁，不应跨请求共享。
type RequestVisibility struct {
	eval *Evaluator
	cfg  TrackingConfig
	req  Request

	page *bool
	role *bool
}

// PageMatch 返回缓存的路径判定。
func (v *RequestVisibility) PageMatch() bool {
	if v.page == nil {
		r := v.eval.PageMatch(v.cfg, v.req.Path)
		v.page = &r
	}
	return *v.page
}

// RoleMatch 返回缓存的角色判定。
func (v *RequestVisibility) RoleMatch() bool {
	if v.role == nil {
		r := RoleMatch(v.cfg, v.req.Account)
		v.role = &r
	}
	return *v.role
}

// ShouldTrack 两个条件同时满足才输出脚本。
func (v *RequestVisibility) ShouldTrack() bool {
	return v.RoleMatch() && v.PageMatch()
}

// Config 返回判定使用的配置快照。
func (v *RequestVisibility) Config() TrackingConfig {
	return v.cfg
}

type visibilityKey struct{}

// WithVisibility 将请求级判定器放入渲染上下文。
func WithVisibility(ctx context.Context, v *RequestVisibility) context.Context {
	return context.WithValue(ctx, visibilityKey{}, v)
}

// VisibilityFrom 从渲染上下文取出请求级判定器。
func VisibilityFrom(ctx context.Context) (*RequestVisibility, bool) {
	v, ok := ctx.Value(visibilityKey{}).(*RequestVisibility)
	return v, ok && v != nil
}
