// Command clarity 是 Clarity 追踪脚本本地缓存的运维工具。
//
// 常用操作：
//
//	clarity sync        强制与远程同步本地缓存（可由 cron 每日调用）
//	clarity url         输出页面应引用的脚本地址
//	clarity purge       删除本地缓存
//	clarity check       判定某个路径/角色是否输出追踪脚本
//	clarity dashboard   输出嵌入式仪表盘地址
//	clarity watch       监听其他进程发出的刷新通知
package main

import (
	"os"
)

func main() {
	a := newApp()
	if err := execute(a, newRootCmdWithApp(a)); err != nil {
		os.Exit(1)
	}
}
