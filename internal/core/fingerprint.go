package core

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/RecoveryAshes/ScholarCrawl/internal/config"
	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
	"github.com/RecoveryAshes/ScholarCrawl/internal/utils"
)

// 身份池为空时使用的内置身份
var (
	defaultUserAgents = []models.UserAgentProfile{
		{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			Platform:  "Win32",
		},
		{
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			Platform:  "MacIntel",
		},
	}
	defaultViewports = []models.Viewport{
		{Width: 1920, Height: 1080, DeviceScaleFactor: 1},
		{Width: 1366, Height: 768, DeviceScaleFactor: 1},
	}
	defaultLocales = []models.LocaleProfile{
		{Locale: "en-US", AcceptLanguage: "en-US,en;q=0.9", Timezone: "America/New_York"},
	}
)

// getDefaultHeaders 返回系统默认请求头
func getDefaultHeaders() http.Header {
	return http.Header{
		"Accept":          []string{"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Encoding": []string{"gzip, deflate, br"},
	}
}

// FingerprintProvider 为每个浏览器会话生成随机身份
// 实现 models.FingerprintSource 接口,可被多个并发任务共享
type FingerprintProvider struct {
	mu  sync.Mutex
	rng *rand.Rand

	pool models.FingerprintPool

	// 请求头按优先级合并: 默认 < 配置文件 < 命令行
	defaults http.Header
	config   http.Header
	cli      http.Header

	validator *utils.HeaderValidator
	redactor  *utils.Redactor
}

// ProviderOption FingerprintProvider可选项
type ProviderOption func(*FingerprintProvider)

// WithSeed 使用固定种子,生成的身份序列可复现
func WithSeed(seed uint64) ProviderOption {
	return func(p *FingerprintProvider) {
		p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewFingerprintProvider 基于身份池和命令行请求头创建提供者
// pool为nil或列表为空时使用内置身份
func NewFingerprintProvider(pool *models.FingerprintPool, cliHeaders []string, opts ...ProviderOption) (*FingerprintProvider, error) {
	p := &FingerprintProvider{
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
		defaults:  getDefaultHeaders(),
		config:    make(http.Header),
		cli:       make(http.Header),
		validator: utils.NewHeaderValidator(),
		redactor:  utils.NewRedactor(),
	}
	if pool != nil {
		p.pool = *pool
		for name, value := range pool.Headers {
			p.config.Set(name, value)
		}
	}
	if len(p.pool.UserAgents) == 0 {
		p.pool.UserAgents = defaultUserAgents
	}
	if len(p.pool.Viewports) == 0 {
		p.pool.Viewports = defaultViewports
	}
	if len(p.pool.Locales) == 0 {
		p.pool.Locales = defaultLocales
	}

	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		p.cli = parsed
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadFingerprintProvider 从身份池配置文件创建提供者
// 文件不存在时自动生成模板
func LoadFingerprintProvider(configFile string, cliHeaders []string, opts ...ProviderOption) (*FingerprintProvider, error) {
	pool, err := config.NewFingerprintConfigLoader(configFile).LoadConfig()
	if err != nil {
		utils.Errorf("加载身份池配置失败: %v", err)
		return nil, err
	}
	return NewFingerprintProvider(pool, cliHeaders, opts...)
}

// Validate 验证所有请求头的合法性
// 验证顺序: 默认 → 配置 → 命令行
func (p *FingerprintProvider) Validate() error {
	if err := p.validator.Validate(p.defaults); err != nil {
		return fmt.Errorf("默认请求头验证失败: %w", err)
	}
	if err := p.validator.Validate(p.config); err != nil {
		return fmt.Errorf("配置文件请求头验证失败: %w", err)
	}
	if err := p.validator.Validate(p.cli); err != nil {
		return fmt.Errorf("命令行请求头验证失败: %w", err)
	}
	for _, ua := range p.pool.UserAgents {
		if err := p.validator.ValidateValue("User-Agent", ua.UserAgent); err != nil {
			return fmt.Errorf("身份池验证失败: %w", err)
		}
	}
	return nil
}

// MergedHeaders 按优先级合并请求头 (default < config < cli)
func (p *FingerprintProvider) MergedHeaders() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{p.defaults, p.config, p.cli} {
		for name, values := range layer {
			result[name] = append([]string(nil), values...)
		}
	}
	return result
}

// SafeHeaders 返回脱敏后的合并请求头 (用于日志)
func (p *FingerprintProvider) SafeHeaders() string {
	return p.redactor.RedactToString(p.MergedHeaders())
}

// Next 生成一个新身份
// 合并后的User-Agent和Accept-Language请求头优先于身份池中的取值
func (p *FingerprintProvider) Next() (models.Fingerprint, error) {
	p.mu.Lock()
	ua := p.pool.UserAgents[p.rng.IntN(len(p.pool.UserAgents))]
	vp := p.pool.Viewports[p.rng.IntN(len(p.pool.Viewports))]
	loc := p.pool.Locales[p.rng.IntN(len(p.pool.Locales))]
	seed := p.rng.Uint64()
	p.mu.Unlock()

	headers := p.MergedHeaders()
	fp := models.Fingerprint{
		UserAgent:      ua.UserAgent,
		Platform:       ua.Platform,
		AcceptLanguage: loc.AcceptLanguage,
		Locale:         loc.Locale,
		Timezone:       loc.Timezone,
		Viewport:       vp,
		CookieSeed:     fmt.Sprintf("%016x", seed),
	}
	if v := headers.Get("User-Agent"); v != "" {
		fp.UserAgent = v
	}
	if v := headers.Get("Accept-Language"); v != "" {
		fp.AcceptLanguage = v
	}
	if fp.AcceptLanguage == "" {
		fp.AcceptLanguage = fp.Locale
	}
	headers.Del("User-Agent")
	headers.Del("Accept-Language")
	fp.Headers = headers

	if err := p.validator.ValidateFingerprint(fp); err != nil {
		return models.Fingerprint{}, err
	}

	utils.Debugf("生成浏览器身份: UA=%s 视口=%dx%d 语言=%s 时区=%s",
		fp.UserAgent, vp.Width, vp.Height, fp.AcceptLanguage, fp.Timezone)
	return fp, nil
}
