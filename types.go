package clarity

// PathMode 决定 Pages 列表的语义。
type PathMode int

const (
	PathExcludeListed PathMode = 0 // 除列出的页面外全部追踪
	PathIncludeListed PathMode = 1 // 仅追踪列出的页面
)

// RoleMode 决定 Roles 集合的语义。
type RoleMode int

const (
	RoleIncludeSelected RoleMode = 0 // 仅追踪选中的角色
	RoleExcludeSelected RoleMode = 1 // 追踪除选中角色外的所有人
)

// TrackingConfig 是每次判定时读取的不可变配置快照。
type TrackingConfig struct {
	ProjectID  string   // Clarity 项目 ID
	PathMode   PathMode // Pages 的语义
	Pages      []string // Glob 模式，每行一个，可包含 <front>
	RoleMode   RoleMode // Roles 的语义
	Roles      []string // 角色 ID，空表示追踪所有人
	LocalCache bool     // 是否在本地缓存脚本
}

// RemoteURL 返回远程脚本地址。
// ProjectID 为空时仍返回语法合法的 URL，由上游负责校验。
func (c TrackingConfig) RemoteURL() string {
	return RemoteBaseURL + c.ProjectID
}

// Account 当前请求的用户，由宿主提供。
type Account struct {
	Roles []string
}

// Request 是判定可见性所需的请求上下文。
type Request struct {
	Path    string
	Account Account
}
