// Package crawlers 提供浏览器会话、页面跳转控制以及主站与文献索引站点的抓取功能
//
// # 概述
//
// 一次学者抓取任务独占一个浏览器会话(独立进程与用户目录),在会话内顺序跳转。
// 不同学者的任务各自持有会话,可以并发运行,互不共享可变状态。
//
// # 核心组件
//
// ## Session / Page
//
// 浏览器会话与标签页接口。RodSession基于go-rod实现:
//   - 启动参数去除自动化标记,首选路径失败后使用备用路径重试一次,仍失败返回ErrBrowserUnavailable
//   - 每个标签页注入反检测脚本,设置UA、视口、时区和额外请求头
//   - 拦截图片、样式、字体、媒体请求
//   - Close可重复调用,关闭进程并删除临时用户目录
//
// 测试使用crawlertest包中的内存实现。
//
//	session, err := OpenSession(ctx, cfg.Browser, fingerprint)
//	if err != nil { /* ErrBrowserUnavailable */ }
//	defer session.Close()
//	page, err := session.NewPage(ctx)
//
// ## Navigator
//
// 统一的页面跳转入口: 拟人化随机间隔(任务内第一次跳转除外)、WithRetry重试、
// 加载后模拟鼠标与滚动、拦截页面检测。命中拦截特征返回ErrBlockedBySource,
// 由调用方决定是否轮换身份。
//
//	nav := NewNavigator(cfg.Navigation)
//	html, err := nav.Fetch(ctx, page, url)
//
// ## ProfileResolver
//
// 搜索作者姓名,按姓名相似度选出不低于阈值的最佳候选,同分取最靠前的一项。
//
// ## Paginator
//
// 反复点击"加载更多"直到按钮消失或禁用,最多MaxCycles轮。单轮失败按固定间隔重试,
// 重试耗尽后返回已加载的部分,不视为错误。
//
// ## SecondarySource
//
// 基于Colly的文献索引站点抓取器,x/time/rate限速,支持br/deflate响应解压。
//
// ## ResourceMonitor
//
// 通过gopsutil采样可用内存与CPU负载,计算可同时运行的浏览器会话数。
package crawlers
