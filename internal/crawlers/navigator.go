package crawlers

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
	"github.com/RecoveryAshes/ScholarCrawl/internal/parsers"
	"github.com/RecoveryAshes/ScholarCrawl/internal/utils"
	"github.com/rs/zerolog/log"
)

// SleepFunc 可被取消的等待
type SleepFunc func(ctx context.Context, d time.Duration) error

// ContextSleep 等待d,ctx取消时提前返回
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy 重试策略
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration // 每次重试前的固定等待
	Jitter      time.Duration // 在Delay之上追加 [0, Jitter] 的随机等待
	Sleep       SleepFunc     // 为空时使用ContextSleep
}

// wait 返回第attempt次失败后的等待时间
func (p RetryPolicy) wait() time.Duration {
	d := p.Delay
	if p.Jitter > 0 {
		d += time.Duration(rand.Int64N(int64(p.Jitter) + 1))
	}
	return d
}

// retryable 拦截、取消、致命错误不重试
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch models.KindOf(err) {
	case models.KindBlockedBySource, models.KindBrowserUnavailable, models.KindScrapeAborted,
		models.KindProfileNotFound, models.KindExtractionIncomplete:
		return false
	}
	return true
}

// WithRetry 按策略执行op,直到成功、遇到不可重试错误或次数耗尽
// 次数耗尽时返回最后一次的错误
func WithRetry(ctx context.Context, policy RetryPolicy, op func(attempt int) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(attempt)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || ctx.Err() != nil {
			return lastErr
		}
		if attempt < attempts {
			wait := policy.wait()
			utils.Warnf("操作失败(尝试%d/%d),%v后重试: %v", attempt, attempts, wait, lastErr)
			if err := sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// Navigator 页面跳转控制: 拟人化间隔、重试、交互模拟与拦截检测
// 一个Navigator只服务一次任务,不可并发使用
type Navigator struct {
	policy   RetryPolicy
	minDelay time.Duration
	maxDelay time.Duration
	humanize bool
	sleep    SleepFunc
	detect   func(html string) (bool, string)

	requests int
}

// NavigatorOption Navigator可选项
type NavigatorOption func(*Navigator)

// WithSleep 替换等待函数 (测试中用于跳过真实等待)
func WithSleep(sleep SleepFunc) NavigatorOption {
	return func(n *Navigator) {
		n.sleep = sleep
		n.policy.Sleep = sleep
	}
}

// WithBlockDetector 替换拦截检测函数
func WithBlockDetector(detect func(html string) (bool, string)) NavigatorOption {
	return func(n *Navigator) {
		n.detect = detect
	}
}

// NewNavigator 创建Navigator
func NewNavigator(cfg models.NavigationConfig, opts ...NavigatorOption) *Navigator {
	n := &Navigator{
		policy: RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			Delay:       cfg.RetryDelay,
			Jitter:      cfg.RetryJitter,
			Sleep:       ContextSleep,
		},
		minDelay: cfg.MinDelay,
		maxDelay: cfg.MaxDelay,
		humanize: cfg.Humanize,
		sleep:    ContextSleep,
		detect:   parsers.DetectBlock,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Requests 已发起的跳转次数
func (n *Navigator) Requests() int {
	return n.requests
}

// pace 除本次任务的第一次跳转外,每次跳转前随机等待
func (n *Navigator) pace(ctx context.Context) error {
	defer func() { n.requests++ }()
	if n.requests == 0 || n.maxDelay <= 0 {
		return nil
	}
	d := n.minDelay
	if span := n.maxDelay - n.minDelay; span > 0 {
		d += time.Duration(rand.Int64N(int64(span) + 1))
	}
	return n.sleep(ctx, d)
}

// Goto 跳转到url,失败时返回带类别的错误
func (n *Navigator) Goto(ctx context.Context, page Page, url string) error {
	_, err := n.Fetch(ctx, page, url)
	return err
}

// Fetch 跳转到url并返回渲染后的HTML
// 重试耗尽返回NavigationFailed,命中拦截特征返回BlockedBySource
func (n *Navigator) Fetch(ctx context.Context, page Page, url string) (string, error) {
	if err := n.pace(ctx); err != nil {
		return "", err
	}

	attempts := 0
	err := WithRetry(ctx, n.policy, func(attempt int) error {
		attempts = attempt
		return page.Navigate(ctx, url)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		se := models.NewScrapeError(models.KindNavigationFailed, "goto", url, err)
		se.Attempts = attempts
		return "", se
	}

	if n.humanize {
		if err := page.Humanize(ctx); err != nil {
			log.Debug().Str("url", url).Err(err).Msg("模拟交互失败,忽略")
		}
	}

	html, err := page.HTML(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", models.NewScrapeError(models.KindNavigationFailed, "html", url, err)
	}

	if blocked, reason := n.detect(html); blocked {
		utils.Warnf("检测到拦截页面 [%s]: %s", url, reason)
		return "", models.NewScrapeError(models.KindBlockedBySource, "goto", url,
			fmt.Errorf("命中拦截特征: %s", reason))
	}
	return html, nil
}
