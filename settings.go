package clarity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// ErrInvalidSettings 设置校验失败。
var ErrInvalidSettings = errors.New("invalid settings")

// Settings 是存储的原始设置，包含宿主相关的部署参数。
type Settings struct {
	ProjectID  string           `mapstructure:"project_id"`
	Visibility VisibilityConfig `mapstructure:"visibility"`
	LocalCache bool             `mapstructure:"local_cache"`
	Cache      CacheSettings    `mapstructure:"cache"`
	Site       SiteSettings     `mapstructure:"site"`
	Redis      RedisSettings    `mapstructure:"redis"`
}

// VisibilityConfig 页面与角色的可见性设置。
type VisibilityConfig struct {
	RequestPathMode  int      `mapstructure:"request_path_mode"`
	RequestPathPages string   `mapstructure:"request_path_pages"` // 每行一个路径
	UserRoleMode     int      `mapstructure:"user_role_mode"`
	UserRoleRoles    []string `mapstructure:"user_role_roles"`
}

type CacheSettings struct {
	Dir        string `mapstructure:"dir"`
	PublicPath string `mapstructure:"public_path"`
	Gzip       bool   `mapstructure:"gzip"`
	BaseURL    string `mapstructure:"base_url"`
}

type SiteSettings struct {
	Name      string `mapstructure:"name"`
	FrontPath string `mapstructure:"front_path"`
}

type RedisSettings struct {
	Addr   string `mapstructure:"addr"`
	Prefix string `mapstructure:"prefix"`
}

// SetDefaults 注册默认值。
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project_id", "")
	v.SetDefault("visibility.request_path_mode", int(PathExcludeListed))
	v.SetDefault("visibility.request_path_pages", "/admin\n/admin/*\n/batch\n/node/add*\n/node/*/*\n/user/*/*")
	v.SetDefault("visibility.user_role_mode", int(RoleIncludeSelected))
	v.SetDefault("local_cache", false)
	v.SetDefault("cache.dir", DefaultCacheDir)
	v.SetDefault("cache.public_path", DefaultPublicPath)
	v.SetDefault("cache.gzip", false)
	v.SetDefault("cache.base_url", RemoteBaseURL)
	v.SetDefault("site.name", "")
	v.SetDefault("site.front_path", "/")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.prefix", "btt-clarity:")
}

// LoadSettings 从 viper 读取设置（配置文件、CLARITY_ 环境变量）。
func LoadSettings(v *viper.Viper) (*Settings, error) {
	SetDefaults(v)
	v.SetEnvPrefix("clarity")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal settings failed: %w", err)
	}
	s.Normalize()
	return &s, nil
}

var lineBreak = regexp.MustCompile(`\r\n?|\n`)

// SplitPages 将多行文本拆分为模式列表，忽略空行。
func SplitPages(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var pages []string
	for _, line := range lineBreak.Split(text, -1) {
		if line = strings.TrimSpace(line); line != "" {
			pages = append(pages, line)
		}
	}
	return pages
}

// Normalize 去掉首尾空白和空角色。
func (s *Settings) Normalize() {
	s.ProjectID = strings.TrimSpace(s.ProjectID)
	s.Visibility.RequestPathPages = strings.TrimSpace(s.Visibility.RequestPathPages)

	roles := make([]string, 0, len(s.Visibility.UserRoleRoles))
	for _, r := range s.Visibility.UserRoleRoles {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	s.Visibility.UserRoleRoles = roles
}

// Validate 校验每个路径都以 "/" 开头（<front> 除外），只报告第一个错误。
func (s *Settings) Validate() error {
	mode := PathMode(s.Visibility.RequestPathMode)
	if mode != PathExcludeListed && mode != PathIncludeListed {
		return fmt.Errorf("%w: unknown request path mode %d", ErrInvalidSettings, s.Visibility.RequestPathMode)
	}
	roleMode := RoleMode(s.Visibility.UserRoleMode)
	if roleMode != RoleIncludeSelected && roleMode != RoleExcludeSelected {
		return fmt.Errorf("%w: unknown user role mode %d", ErrInvalidSettings, s.Visibility.UserRoleMode)
	}
	for _, page := range SplitPages(s.Visibility.RequestPathPages) {
		if !strings.HasPrefix(page, "/") && page != FrontToken {
			return fmt.Errorf("%w: path %q not prefixed with slash", ErrInvalidSettings, page)
		}
	}
	return nil
}

// TrackingConfig 返回判定使用的不可变快照。
func (s *Settings) TrackingConfig() TrackingConfig {
	return TrackingConfig{
		ProjectID:  s.ProjectID,
		PathMode:   PathMode(s.Visibility.RequestPathMode),
		Pages:      SplitPages(s.Visibility.RequestPathPages),
		RoleMode:   RoleMode(s.Visibility.UserRoleMode),
		Roles:      append([]string(nil), s.Visibility.UserRoleRoles...),
		LocalCache: s.LocalCache,
	}
}

// Purger 清理本地缓存。
type Purger interface {
	Purge(ctx context.Context) error
}

// ApplySettings 在保存新设置前调用。
// 校验新设置；本地缓存从开启变为关闭时清理旧缓存。
func ApplySettings(ctx context.Context, old, next *Settings, purger Purger) error {
	next.Normalize()
	if err := next.Validate(); err != nil {
		return err
	}
	if old != nil && old.LocalCache && !next.LocalCache && purger != nil {
		if err := purger.Purge(ctx); err != nil {
			return fmt.Errorf("purge obsolete cache failed: %w", err)
		}
	}
	return nil
}
