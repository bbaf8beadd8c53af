package crawlers

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
	"github.com/RecoveryAshes/ScholarCrawl/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// LoadMoreSpec 描述列表页"加载更多"控件
type LoadMoreSpec struct {
	ButtonSelector string        // 加载更多按钮
	RowSelector    string        // 列表行,用于判断是否追加了新行
	Timeout        time.Duration // 点击后等待新行出现的超时
}

// ScholarLoadMore 学者主页出版物列表的加载更多控件
func ScholarLoadMore(timeout time.Duration) LoadMoreSpec {
	return LoadMoreSpec{
		ButtonSelector: "#gsc_bpf_more",
		RowSelector:    "tr.gsc_a_tr",
		Timeout:        timeout,
	}
}

// Page 会话中的一个标签页
// 同一个Page只能被一个goroutine顺序使用
type Page interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	// Humanize 模拟一次小幅鼠标移动和滚动
	Humanize(ctx context.Context) error
	// LoadMore 点击加载更多并等待新行出现
	// 控件不存在或已禁用时返回false
	LoadMore(ctx context.Context, spec LoadMoreSpec) (bool, error)
	// SetCookies 为pageURL所在站点写入cookie
	SetCookies(ctx context.Context, pageURL string, cookies []*http.Cookie) error
	Close() error
}

// Session 一个浏览器会话 (独立进程与用户目录)
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// SessionFactory 以指定身份打开会话
type SessionFactory func(ctx context.Context, fp models.Fingerprint) (Session, error)

// NewRodSessionFactory 返回基于go-rod的会话工厂
func NewRodSessionFactory(cfg models.BrowserConfig) SessionFactory {
	return func(ctx context.Context, fp models.Fingerprint) (Session, error) {
		return OpenSession(ctx, cfg, fp)
	}
}

// RodSession 基于go-rod的浏览器会话
type RodSession struct {
	cfg      models.BrowserConfig
	fp       models.Fingerprint
	launcher *launcher.Launcher
	browser  *rod.Browser

	profileDir  string
	tempProfile bool
	stopAuth    context.CancelFunc

	mu        sync.Mutex
	pages     []*rodPage
	closeOnce sync.Once
	closeErr  error
}

// OpenSession 启动浏览器并连接
// 首选路径启动失败时使用备用路径再试一次,仍失败返回ErrBrowserUnavailable
func OpenSession(ctx context.Context, cfg models.BrowserConfig, fp models.Fingerprint) (*RodSession, error) {
	s := &RodSession{cfg: cfg, fp: fp}

	if cfg.PersistentProfileDir != "" {
		if err := os.MkdirAll(cfg.PersistentProfileDir, 0755); err != nil {
			return nil, models.NewScrapeError(models.KindBrowserUnavailable, "open", "",
				fmt.Errorf("创建用户目录失败: %w", err))
		}
		s.profileDir = cfg.PersistentProfileDir
	} else {
		dir, err := os.MkdirTemp("", "scholarcrawl-profile-*")
		if err != nil {
			return nil, models.NewScrapeError(models.KindBrowserUnavailable, "open", "",
				fmt.Errorf("创建临时用户目录失败: %w", err))
		}
		s.profileDir = dir
		s.tempProfile = true
	}

	err := s.launch(ctx, cfg.ExecutablePath)
	if err != nil && cfg.FallbackExecutablePath != "" && cfg.FallbackExecutablePath != cfg.ExecutablePath {
		utils.Warnf("浏览器启动失败,尝试备用路径 %s: %v", cfg.FallbackExecutablePath, err)
		err = s.launch(ctx, cfg.FallbackExecutablePath)
	}
	if err != nil {
		s.cleanupProfile()
		return nil, models.NewScrapeError(models.KindBrowserUnavailable, "open", "", err)
	}

	if cfg.Proxy.Enabled() && cfg.Proxy.Username != "" {
		s.handleProxyAuth()
	}

	utils.Debugf("浏览器会话已启动 (UA=%s, 视口=%dx%d)", fp.UserAgent, fp.Viewport.Width, fp.Viewport.Height)
	return s, nil
}

// LocateBrowser 按 配置路径 → 备用路径 → 系统查找 的顺序定位浏览器可执行文件
func LocateBrowser(cfg models.BrowserConfig) (string, bool) {
	for _, p := range []string{cfg.ExecutablePath, cfg.FallbackExecutablePath} {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return launcher.LookPath()
}

// launch 启动一次浏览器进程,bin为空时由launcher自动查找
func (s *RodSession) launch(ctx context.Context, bin string) error {
	l := launcher.New().
		Context(ctx).
		Headless(s.cfg.Headless).
		NoSandbox(s.cfg.NoSandbox).
		UserDataDir(s.profileDir).
		Set("disable-blink-features", "AutomationControlled").
		Delete("enable-automation")

	if bin != "" {
		l = l.Bin(bin)
	}
	if s.fp.Locale != "" {
		l = l.Set("lang", s.fp.Locale)
	}
	if s.fp.Viewport.Width > 0 && s.fp.Viewport.Height > 0 {
		l = l.Set("window-size", fmt.Sprintf("%d,%d", s.fp.Viewport.Width, s.fp.Viewport.Height))
	}
	if s.cfg.Proxy.Enabled() {
		l = l.Proxy(s.cfg.Proxy.Server)
		utils.Debugf("浏览器使用代理: %s", s.cfg.Proxy.Server)
	}

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("连接浏览器失败: %w", err)
	}

	s.launcher = l
	s.browser = browser
	utils.Debugf("浏览器已启动: %s", controlURL)
	return nil
}

// handleProxyAuth 持续应答代理认证,直到会话关闭
func (s *RodSession) handleProxyAuth() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopAuth = cancel
	browser := s.browser.Context(ctx)
	go func() {
		for ctx.Err() == nil {
			wait := browser.HandleAuth(s.cfg.Proxy.Username, s.cfg.Proxy.Password)
			if err := wait(); err != nil {
				if ctx.Err() == nil {
					utils.Debugf("代理认证监听结束: %v", err)
				}
				return
			}
		}
	}()
}

// NewPage 创建标签页并安装身份与反检测设置
func (s *RodSession) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("创建标签页失败: %w", err)
	}

	rp := &rodPage{page: page, timeout: s.cfg.Timeout}
	if err := applyStealth(page, s.fp); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("设置标签页身份失败: %w", err)
	}
	if s.cfg.BlockResources {
		router, err := blockResources(page)
		if err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("设置资源拦截失败: %w", err)
		}
		rp.router = router
	}

	s.mu.Lock()
	s.pages = append(s.pages, rp)
	s.mu.Unlock()
	return rp, nil
}

// Close 关闭所有标签页与浏览器进程,清理临时用户目录
// 可重复调用
func (s *RodSession) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		pages := s.pages
		s.pages = nil
		s.mu.Unlock()

		for _, p := range pages {
			_ = p.Close()
		}
		if s.stopAuth != nil {
			s.stopAuth()
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				s.closeErr = fmt.Errorf("关闭浏览器失败: %w", err)
			}
		}
		if s.launcher != nil {
			s.launcher.Kill()
			if s.tempProfile {
				// 等待进程退出并删除用户目录
				s.launcher.Cleanup()
			}
		}
		s.cleanupProfile()
		utils.Debugf("浏览器会话已关闭")
	})
	return s.closeErr
}

func (s *RodSession) cleanupProfile() {
	if !s.tempProfile || s.profileDir == "" {
		return
	}
	if err := os.RemoveAll(s.profileDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		utils.Warnf("删除临时用户目录失败 %s: %v", s.profileDir, err)
	}
}

// rodPage go-rod标签页
type rodPage struct {
	page    *rod.Page
	router  *rod.HijackRouter
	timeout time.Duration

	closeOnce sync.Once
}

func (p *rodPage) scoped(ctx context.Context, timeout time.Duration) *rod.Page {
	page := p.page.Context(ctx)
	if timeout > 0 {
		page = page.Timeout(timeout)
	}
	return page
}

// Navigate 打开URL并等待load事件
func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page := p.scoped(ctx, p.timeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("打开页面失败: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("等待页面加载失败: %w", err)
	}
	return nil
}

// HTML 返回当前渲染后的HTML
func (p *rodPage) HTML(ctx context.Context) (string, error) {
	html, err := p.scoped(ctx, p.timeout).HTML()
	if err != nil {
		return "", fmt.Errorf("读取页面HTML失败: %w", err)
	}
	return html, nil
}

// Humanize 随机移动鼠标并向下滚动一小段
func (p *rodPage) Humanize(ctx context.Context) error {
	page := p.scoped(ctx, 10*time.Second)
	to := proto.Point{X: 100 + rand.Float64()*500, Y: 100 + rand.Float64()*300}
	if err := page.Mouse.MoveLinear(to, 5+rand.IntN(10)); err != nil {
		return fmt.Errorf("模拟鼠标移动失败: %w", err)
	}
	if err := page.Mouse.Scroll(0, 200+rand.Float64()*400, 3+rand.IntN(4)); err != nil {
		return fmt.Errorf("模拟滚动失败: %w", err)
	}
	return nil
}

// LoadMore 点击加载更多,等待网络响应后确认列表行数增加
func (p *rodPage) LoadMore(ctx context.Context, spec LoadMoreSpec) (bool, error) {
	page := p.scoped(ctx, spec.Timeout)

	has, button, err := page.Has(spec.ButtonSelector)
	if err != nil {
		return false, fmt.Errorf("查找加载更多按钮失败: %w", err)
	}
	if !has {
		return false, nil
	}
	disabled, err := button.Disabled()
	if err != nil {
		return false, fmt.Errorf("读取按钮状态失败: %w", err)
	}
	if disabled {
		return false, nil
	}

	rows, err := page.Elements(spec.RowSelector)
	if err != nil {
		return false, fmt.Errorf("统计列表行失败: %w", err)
	}
	before := len(rows)

	_ = button.ScrollIntoView()
	waitResponse := page.WaitEvent(&proto.NetworkResponseReceived{})
	if err := button.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return true, fmt.Errorf("点击加载更多失败: %w", err)
	}
	waitResponse()

	err = page.Wait(rod.Eval(`(sel, n) => document.querySelectorAll(sel).length > n`, spec.RowSelector, before))
	if err != nil {
		return true, fmt.Errorf("等待新列表行超时: %w", err)
	}
	return true, nil
}

// SetCookies 通过CDP写入cookie
func (p *rodPage) SetCookies(ctx context.Context, pageURL string, cookies []*http.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	if err := p.scoped(ctx, p.timeout).SetCookies(cookieParams(pageURL, cookies)); err != nil {
		return fmt.Errorf("写入cookie失败: %w", err)
	}
	return nil
}

// cookieParams 转换为CDP的cookie参数,未指定域名时按pageURL生成host-only cookie
func cookieParams(pageURL string, cookies []*http.Cookie) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		param := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			URL:      pageURL,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if !c.Expires.IsZero() {
			param.Expires = proto.TimeSinceEpoch(c.Expires.Unix())
		}
		params = append(params, param)
	}
	return params
}

// Close 停止请求拦截并关闭标签页
func (p *rodPage) Close() error {
	var err error
	p.closeOnce.Do(func() {
		if p.router != nil {
			_ = p.router.Stop()
		}
		err = p.page.Close()
	})
	return err
}
