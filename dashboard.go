package clarity

import "net/url"

// DashboardURL 返回嵌入 Clarity 仪表盘的地址。
// integration/druapl-site 的拼写与 Clarity 端已注册的集成参数保持一致，不要修正。
func DashboardURL(siteName, projectID string) string {
	q := url.Values{}
	q.Set("integration", "Druapl")
	q.Set("druapl-site", siteName)
	q.Set("drupal-admin", "1")
	q.Set("project", projectID)
	return DashboardBaseURL + "?" + q.Encode()
}
