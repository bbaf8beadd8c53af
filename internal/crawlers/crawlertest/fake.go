// Package crawlertest 提供内存中的浏览器会话替身,供crawlers与core的测试使用
package crawlertest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/RecoveryAshes/ScholarCrawl/internal/crawlers"
	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
)

// BlockPage 模拟的人机验证页面
const BlockPage = `<html><body><form id="gs_captcha_f"><h1>Please show you're not a robot</h1>
<p>Our systems have detected unusual traffic from your computer network.</p></form></body></html>`

// Site 按URL返回固定HTML的模拟站点
// 所有方法并发安全
type Site struct {
	mu sync.Mutex

	pages     map[string]string
	snapshots map[string][]string // 每次加载更多后的页面
	failures  map[string]int      // 剩余的导航失败次数
	blocked   map[string]int      // 前n个会话访问该URL时看到验证页
	panics    map[string]bool

	// LoadMoreFunc 非空时替代快照逻辑,call从1开始
	LoadMoreFunc func(url string, call int) (bool, error)
	// OnNavigate 每次导航前回调
	OnNavigate func(url string)
	// LaunchErr 非空时会话工厂直接返回该错误
	LaunchErr error

	visits       []string
	fingerprints []models.Fingerprint
	cookies      map[int][]*http.Cookie // 按会话序号记录写入的cookie
	openSessions int
}

// NewSite 创建空站点
func NewSite() *Site {
	return &Site{
		pages:     make(map[string]string),
		snapshots: make(map[string][]string),
		failures:  make(map[string]int),
		blocked:   make(map[string]int),
		panics:    make(map[string]bool),
		cookies:   make(map[int][]*http.Cookie),
	}
}

// Handle 注册URL对应的HTML
func (s *Site) Handle(url, html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = html
}

// HandleLoadMore 注册每次加载更多后依次出现的页面
func (s *Site) HandleLoadMore(url string, snapshots ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[url] = snapshots
}

// FailNavigation 前times次导航到url返回错误
func (s *Site) FailNavigation(url string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[url] = times
}

// BlockSessions 前sessions个会话访问url时返回验证页
func (s *Site) BlockSessions(url string, sessions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[url] = sessions
}

// PanicOn 导航到url时panic
func (s *Site) PanicOn(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panics[url] = true
}

// Visits 按顺序返回全部导航记录
func (s *Site) Visits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visits...)
}

// VisitCount 导航到url的次数
func (s *Site) VisitCount(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.visits {
		if v == url {
			n++
		}
	}
	return n
}

// SessionsOpened 已打开的会话数
func (s *Site) SessionsOpened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fingerprints)
}

// OpenSessions 尚未关闭的会话数
func (s *Site) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openSessions
}

// Fingerprints 每个会话使用的身份
func (s *Site) Fingerprints() []models.Fingerprint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Fingerprint(nil), s.fingerprints...)
}

// SessionCookies 第session个会话 (从1开始) 写入的cookie
func (s *Site) SessionCookies(session int) []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*http.Cookie(nil), s.cookies[session]...)
}

// Factory 返回打开模拟会话的工厂
func (s *Site) Factory() crawlers.SessionFactory {
	return func(ctx context.Context, fp models.Fingerprint) (crawlers.Session, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.LaunchErr != nil {
			return nil, s.LaunchErr
		}
		s.fingerprints = append(s.fingerprints, fp)
		s.openSessions++
		return &Session{site: s, ordinal: len(s.fingerprints)}, nil
	}
}

// Session 模拟会话
type Session struct {
	site    *Site
	ordinal int // 第几个打开的会话,从1开始

	mu     sync.Mutex
	closed bool
}

// NewPage 创建模拟标签页
func (ss *Session) NewPage(ctx context.Context) (crawlers.Page, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.closed {
		return nil, fmt.Errorf("会话已关闭")
	}
	return &Page{session: ss}, nil
}

// Close 关闭会话 (可重复调用)
func (ss *Session) Close() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.closed {
		return nil
	}
	ss.closed = true
	ss.site.mu.Lock()
	ss.site.openSessions--
	ss.site.mu.Unlock()
	return nil
}

// Page 模拟标签页
type Page struct {
	session *Session

	url       string
	html      string
	loadCalls int
	humanized int
	closed    bool
}

// Navigate 跳转并记录访问
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	site := p.session.site
	if site.OnNavigate != nil {
		site.OnNavigate(url)
	}

	site.mu.Lock()
	site.visits = append(site.visits, url)
	if site.panics[url] {
		site.mu.Unlock()
		panic("模拟浏览器崩溃: " + url)
	}
	if site.failures[url] > 0 {
		site.failures[url]--
		site.mu.Unlock()
		return fmt.Errorf("net::ERR_CONNECTION_RESET %s", url)
	}
	html, ok := site.pages[url]
	if p.session.ordinal <= site.blocked[url] {
		html, ok = BlockPage, true
	}
	site.mu.Unlock()

	if !ok {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED %s", url)
	}
	p.url, p.html, p.loadCalls = url, html, 0
	return nil
}

// HTML 返回当前页面
func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.html, nil
}

// Humanize 只计数
func (p *Page) Humanize(ctx context.Context) error {
	p.humanized++
	return ctx.Err()
}

// Humanized 模拟交互次数
func (p *Page) Humanized() int {
	return p.humanized
}

// LoadMore 依次切换到注册的快照
func (p *Page) LoadMore(ctx context.Context, spec crawlers.LoadMoreSpec) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	site := p.session.site
	p.loadCalls++
	if site.LoadMoreFunc != nil {
		return site.LoadMoreFunc(p.url, p.loadCalls)
	}

	site.mu.Lock()
	snapshots := site.snapshots[p.url]
	site.mu.Unlock()
	if p.loadCalls > len(snapshots) {
		return false, nil
	}
	p.html = snapshots[p.loadCalls-1]
	return true, nil
}

// SetCookies 记录到所属会话
func (p *Page) SetCookies(ctx context.Context, pageURL string, cookies []*http.Cookie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	site := p.session.site
	site.mu.Lock()
	defer site.mu.Unlock()
	site.cookies[p.session.ordinal] = append(site.cookies[p.session.ordinal], cookies...)
	return nil
}

// Close 关闭标签页
func (p *Page) Close() error {
	p.closed = true
	return nil
}
