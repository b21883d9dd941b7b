package clarity

import (
	"regexp"
	"strings"
	"sync"
)

// PathMatcher 判断路径是否命中任意一个模式。
// 对传入的字符串大小写敏感（调用方负责转小写）。
type PathMatcher interface {
	MatchPath(path string, patterns []string) bool
}

// AliasResolver 将内部路径解析为对外别名，没有别名时原样返回。
type AliasResolver interface {
	AliasOf(path string) string
}

// IdentityAlias 不做任何解析。
type IdentityAlias struct{}

func (IdentityAlias) AliasOf(path string) string { return path }

// MapAlias 基于静态映射的别名解析。
type MapAlias map[string]string

func (m MapAlias) AliasOf(path string) string {
	if alias, ok := m[path]; ok {
		return alias
	}
	return path
}

// GlobMatcher 实现 glob 风格的路径匹配。
// 模式首尾锚定，'*' 匹配任意字符（可跨越 '/'），<front> 精确匹配首页路径，
// 其他字符均按字面量处理。
type GlobMatcher struct {
	frontPath string
	// 已编译的模式缓存
	// Key: pattern, Value: *regexp.Regexp (编译失败时为 nil)
	compiled sync.Map
}

// NewGlobMatcher 创建匹配器。
// frontPath: 站点首页路径，为空时使用 "/"。
func NewGlobMatcher(frontPath string) *GlobMatcher {
	if frontPath == "" {
		frontPath = "/"
	}
	return &GlobMatcher{frontPath: frontPath}
}

// MatchPath 按顺序匹配，任意一个模式命中即返回 true。
func (m *GlobMatcher) MatchPath(path string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if re := m.compile(p); re != nil && re.MatchString(path) {
			return true
		}
	}
	return false
}

func (m *GlobMatcher) compile(pattern string) *regexp.Regexp {
	if cached, ok := m.compiled.Load(pattern); ok {
		re, _ := cached.(*regexp.Regexp)
		return re
	}

	var expr string
	if pattern == FrontToken {
		expr = "^" + regexp.QuoteMeta(m.frontPath) + "$"
	} else {
		parts := strings.Split(pattern, "*")
		for i := range parts {
			parts[i] = regexp.QuoteMeta(parts[i])
		}
		expr = "^" + strings.Join(parts, ".*") + "$"
	}

	// 所有非 '*' 字符都已转义，理论上不会失败；失败的模式视为永不匹配
	re, err := regexp.Compile(expr)
	if err != nil {
		re = nil
	}
	m.compiled.Store(pattern, re)
	return re
}
