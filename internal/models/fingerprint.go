package models

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Viewport 浏览器窗口尺寸
type Viewport struct {
	Width             int     `mapstructure:"width" yaml:"width" json:"width"`
	Height            int     `mapstructure:"height" yaml:"height" json:"height"`
	DeviceScaleFactor float64 `mapstructure:"device_scale_factor" yaml:"device_scale_factor" json:"device_scale_factor"`
}

// Fingerprint 一个浏览器会话的身份特征
// 每个会话使用一个Fingerprint,轮换时整体替换
type Fingerprint struct {
	UserAgent      string      `json:"user_agent"`
	Platform       string      `json:"platform"`
	AcceptLanguage string      `json:"accept_language"`
	Locale         string      `json:"locale"`
	Timezone       string      `json:"timezone,omitempty"`
	Viewport       Viewport    `json:"viewport"`
	CookieSeed     string      `json:"cookie_seed"` // 会话cookie的值,每个会话不同
	Headers        http.Header `json:"-"`           // 额外请求头 (已合并 默认 < 配置 < 命令行)
}

// SessionCookieName 携带CookieSeed的cookie名称
const SessionCookieName = "SCSID"

// SessionCookie 返回发往rawURL所在站点的会话cookie
// 没有种子或地址无效时返回nil
func (f Fingerprint) SessionCookie(rawURL string) *http.Cookie {
	if f.CookieSeed == "" {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    f.CookieSeed,
		Path:     "/",
		Secure:   u.Scheme == "https",
		HttpOnly: true,
	}
}

// HeaderPairs 将额外请求头展开为 name, value, name, value... 形式
// 名称排序以保证输出稳定
func (f Fingerprint) HeaderPairs() []string {
	names := make([]string, 0, len(f.Headers))
	for name := range f.Headers {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names)*2)
	for _, name := range names {
		pairs = append(pairs, name, f.Headers.Get(name))
	}
	return pairs
}

// UserAgentProfile User-Agent及其对应的navigator.platform
type UserAgentProfile struct {
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	Platform  string `mapstructure:"platform" yaml:"platform"`
}

// LocaleProfile 语言区域组合
type LocaleProfile struct {
	Locale         string `mapstructure:"locale" yaml:"locale"`
	AcceptLanguage string `mapstructure:"accept_language" yaml:"accept_language"`
	Timezone       string `mapstructure:"timezone" yaml:"timezone"`
}

// FingerprintPool 表示fingerprints.yaml配置文件的结构
// 每次生成身份时从各列表中随机抽取
type FingerprintPool struct {
	UserAgents []UserAgentProfile `mapstructure:"user_agents" yaml:"user_agents"`
	Viewports  []Viewport         `mapstructure:"viewports" yaml:"viewports"`
	Locales    []LocaleProfile    `mapstructure:"locales" yaml:"locales"`
	// Headers 附加到每个会话的自定义HTTP头部
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`
}

// Empty 判断身份池是否为空
func (p *FingerprintPool) Empty() bool {
	return len(p.UserAgents) == 0 && len(p.Viewports) == 0 && len(p.Locales) == 0
}

// CliHeaders 表示命令行传递的头部列表
// 每个字符串格式为 "Name: Value"
type CliHeaders []string

// Parse 将字符串列表解析为 http.Header
func (ch CliHeaders) Parse() (http.Header, error) {
	result := make(http.Header)
	for i, s := range ch {
		name, value, err := parseHeaderString(s)
		if err != nil {
			return nil, fmt.Errorf("参数 --header 第%d项格式错误: %w", i+1, err)
		}
		result.Set(name, value)
	}
	return result, nil
}

func parseHeaderString(s string) (name, value string, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("格式错误: 缺少冒号分隔符,应为 'Name: Value'")
	}

	name = strings.TrimSpace(parts[0])
	value = strings.TrimSpace(parts[1])

	if name == "" {
		return "", "", fmt.Errorf("头部名称不能为空")
	}

	return name, value, nil
}

// FingerprintSource 身份提供者接口
// 会话管理器每次(重新)启动浏览器时调用Next获取新身份
type FingerprintSource interface {
	Next() (Fingerprint, error)
}

// ValidationError 头部验证错误
type ValidationError struct {
	// Field 出错的字段 ("name" 或 "value")
	Field string

	HeaderName string
	Reason     string

	// Suggestion 修复建议 (可选)
	Suggestion string
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("头部验证失败 [%s]: %s", e.HeaderName, e.Reason)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (建议: %s)", e.Suggestion)
	}
	return msg
}

// ConfigError 配置文件错误
type ConfigError struct {
	FilePath string
	Cause    error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
