package models

import (
	"errors"
	"fmt"
)

// 错误分类
var (
	ErrBrowserUnavailable   = errors.New("浏览器不可用")
	ErrNavigationFailed     = errors.New("页面导航失败")
	ErrBlockedBySource      = errors.New("被目标站点拦截")
	ErrProfileNotFound      = errors.New("未找到匹配的学者主页")
	ErrExtractionIncomplete = errors.New("缺少必填字段,解析不完整")
	ErrScrapeAborted        = errors.New("抓取任务已中止")
)

// ErrorKind 错误类别,调用方据此决定"中止任务 / 跳过条目 / 轮换身份后重试"
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindBrowserUnavailable
	KindNavigationFailed
	KindBlockedBySource
	KindProfileNotFound
	KindExtractionIncomplete
	KindScrapeAborted
)

var kindSentinels = map[ErrorKind]error{
	KindBrowserUnavailable:   ErrBrowserUnavailable,
	KindNavigationFailed:     ErrNavigationFailed,
	KindBlockedBySource:      ErrBlockedBySource,
	KindProfileNotFound:      ErrProfileNotFound,
	KindExtractionIncomplete: ErrExtractionIncomplete,
	KindScrapeAborted:        ErrScrapeAborted,
}

// String 实现fmt.Stringer
func (k ErrorKind) String() string {
	switch k {
	case KindBrowserUnavailable:
		return "browser_unavailable"
	case KindNavigationFailed:
		return "navigation_failed"
	case KindBlockedBySource:
		return "blocked_by_source"
	case KindProfileNotFound:
		return "profile_not_found"
	case KindExtractionIncomplete:
		return "extraction_incomplete"
	case KindScrapeAborted:
		return "scrape_aborted"
	default:
		return "unknown"
	}
}

// ScrapeError 带类别标签的抓取错误
type ScrapeError struct {
	Kind     ErrorKind
	Op       string // 出错的操作,如 "goto"、"resolve"
	URL      string
	Attempts int   // 已尝试次数(仅导航错误有意义)
	Err      error // 底层错误
}

// NewScrapeError 创建抓取错误
func NewScrapeError(kind ErrorKind, op, url string, err error) *ScrapeError {
	return &ScrapeError{Kind: kind, Op: op, URL: url, Err: err}
}

// Error 实现error接口
func (e *ScrapeError) Error() string {
	msg := fmt.Sprintf("%s [%s]", kindSentinels[e.Kind], e.Op)
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" (尝试%d次)", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap 支持errors.Unwrap
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// Is 使errors.Is(err, ErrXxx)按类别匹配
func (e *ScrapeError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf 返回错误链上第一个可识别的类别
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

// IsRunFatal 只有浏览器启动失败和连续被拦截会终止整个任务
func IsRunFatal(err error) bool {
	switch KindOf(err) {
	case KindBrowserUnavailable, KindScrapeAborted:
		return true
	default:
		return false
	}
}
