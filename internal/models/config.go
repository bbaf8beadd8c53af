package models

import (
	"fmt"
	"time"
)

// ProxyConfig 上游代理
type ProxyConfig struct {
	Server   string `mapstructure:"server" json:"server"`
	Username string `mapstructure:"username" json:"username,omitempty"`
	Password string `mapstructure:"password" json:"-"`
}

// Enabled 是否配置了代理
func (p ProxyConfig) Enabled() bool {
	return p.Server != ""
}

// BrowserConfig 浏览器会话配置
type BrowserConfig struct {
	Headless               bool          `mapstructure:"headless" json:"headless"`                                 // 无头模式 (默认:true)
	ExecutablePath         string        `mapstructure:"executable_path" json:"executable_path,omitempty"`         // 浏览器路径,为空则自动查找
	FallbackExecutablePath string        `mapstructure:"fallback_executable_path" json:"fallback_executable_path"` // 首次启动失败后使用的备用路径
	Timeout                time.Duration `mapstructure:"timeout" json:"timeout"`                                   // 默认导航超时 (默认:45s)
	PersistentProfileDir   string        `mapstructure:"persistent_profile_dir" json:"persistent_profile_dir,omitempty"`
	Proxy                  ProxyConfig   `mapstructure:"proxy" json:"proxy"`
	BlockResources         bool          `mapstructure:"block_resources" json:"block_resources"` // 拦截图片/样式/字体/媒体 (默认:true)
	NoSandbox              bool          `mapstructure:"no_sandbox" json:"no_sandbox"`
}

// NavigationConfig 导航控制配置
type NavigationConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" json:"max_attempts"` // 最大尝试次数 (默认:3)
	RetryDelay  time.Duration `mapstructure:"retry_delay" json:"retry_delay"`   // 重试间隔 (默认:3s)
	RetryJitter time.Duration `mapstructure:"retry_jitter" json:"retry_jitter"` // 重试抖动 (默认:1s)
	MinDelay    time.Duration `mapstructure:"min_delay" json:"min_delay"`       // 拟人化最小间隔 (默认:1s)
	MaxDelay    time.Duration `mapstructure:"max_delay" json:"max_delay"`       // 拟人化最大间隔 (默认:8s)
	Humanize    bool          `mapstructure:"humanize" json:"humanize"`         // 加载后模拟鼠标与滚动 (默认:true)
}

// ResolverConfig 学者主页解析配置
type ResolverConfig struct {
	BaseURL        string  `mapstructure:"base_url" json:"base_url"`               // 主站点地址
	Language       string  `mapstructure:"language" json:"language"`               // hl参数 (默认:en)
	NameThreshold  float64 `mapstructure:"name_threshold" json:"name_threshold"`   // 姓名相似度阈值 (默认:0.8)
	ProfilePageLen int     `mapstructure:"profile_page_len" json:"profile_page_len"` // 列表每页条数 (默认:100)
}

// PaginationConfig "加载更多"分页配置
type PaginationConfig struct {
	MaxCycles     int           `mapstructure:"max_cycles" json:"max_cycles"`         // 加载更多最大轮数 (默认:50)
	MaxRetries    int           `mapstructure:"max_retries" json:"max_retries"`       // 单轮失败重试次数 (默认:5)
	RetryDelay    time.Duration `mapstructure:"retry_delay" json:"retry_delay"`       // 单轮失败重试间隔 (默认:2s)
	ResponseWait  time.Duration `mapstructure:"response_wait" json:"response_wait"`   // 点击后等待新行出现的超时 (默认:15s)
	MaxDetailURLs int           `mapstructure:"max_detail_urls" json:"max_detail_urls"` // 0表示不限制
}

// ExtractionConfig 出版物解析配置
type ExtractionConfig struct {
	FollowDetailLinks bool `mapstructure:"follow_detail_links" json:"follow_detail_links"` // 逐条访问详情页,false时仅使用列表行 (默认:true)
	MaxPublications   int  `mapstructure:"max_publications" json:"max_publications"`       // 0表示不限制
}

// SecondaryConfig 文献索引站点配置
type SecondaryConfig struct {
	Enabled           bool          `mapstructure:"enabled" json:"enabled"`                         // (默认:true)
	BaseURL           string        `mapstructure:"base_url" json:"base_url"`                       // (默认:https://dblp.org)
	MinPrimaryResults int           `mapstructure:"min_primary_results" json:"min_primary_results"` // 主站结果少于该值时才补充 (默认:5)
	RatePerSecond     float64       `mapstructure:"rate_per_second" json:"rate_per_second"`         // (默认:1)
	Timeout           time.Duration `mapstructure:"timeout" json:"timeout"`                         // (默认:30s)
}

// ReconcileConfig 合并配置
type ReconcileConfig struct {
	TitleThreshold float64 `mapstructure:"title_threshold" json:"title_threshold"` // 标题相似度阈值 (默认:0.85)
}

// BatchConfig 多学者并发配置
type BatchConfig struct {
	MaxSessions     int           `mapstructure:"max_sessions" json:"max_sessions"`           // 并发浏览器会话上限 (默认:4)
	Delay           time.Duration `mapstructure:"delay" json:"delay"`                         // 启动相邻任务的间隔 (默认:2s)
	ContinueOnError bool          `mapstructure:"continue_on_error" json:"continue_on_error"` // (默认:true)
}

// ScrapeConfig 抓取配置
type ScrapeConfig struct {
	Browser    BrowserConfig    `mapstructure:"browser" json:"browser"`
	Navigation NavigationConfig `mapstructure:"navigation" json:"navigation"`
	Resolver   ResolverConfig   `mapstructure:"resolver" json:"resolver"`
	Pagination PaginationConfig `mapstructure:"pagination" json:"pagination"`
	Extraction ExtractionConfig `mapstructure:"extraction" json:"extraction"`
	Secondary  SecondaryConfig  `mapstructure:"secondary" json:"secondary"`
	Reconcile  ReconcileConfig  `mapstructure:"reconcile" json:"reconcile"`
	Batch      BatchConfig      `mapstructure:"batch" json:"batch"`
}

// DefaultScrapeConfig 返回默认配置
func DefaultScrapeConfig() ScrapeConfig {
	return ScrapeConfig{
		Browser: BrowserConfig{
			Headless:               true,
			FallbackExecutablePath: "/usr/bin/chromium",
			Timeout:                45 * time.Second,
			BlockResources:         true,
		},
		Navigation: NavigationConfig{
			MaxAttempts: 3,
			RetryDelay:  3 * time.Second,
			RetryJitter: time.Second,
			MinDelay:    time.Second,
			MaxDelay:    8 * time.Second,
			Humanize:    true,
		},
		Resolver: ResolverConfig{
			BaseURL:        "https://scholar.google.com",
			Language:       "en",
			NameThreshold:  0.8,
			ProfilePageLen: 100,
		},
		Pagination: PaginationConfig{
			MaxCycles:    50,
			MaxRetries:   5,
			RetryDelay:   2 * time.Second,
			ResponseWait: 15 * time.Second,
		},
		Extraction: ExtractionConfig{
			FollowDetailLinks: true,
		},
		Secondary: SecondaryConfig{
			Enabled:           true,
			BaseURL:           "https://dblp.org",
			MinPrimaryResults: 5,
			RatePerSecond:     1,
			Timeout:           30 * time.Second,
		},
		Reconcile: ReconcileConfig{
			TitleThreshold: 0.85,
		},
		Batch: BatchConfig{
			MaxSessions:     4,
			Delay:           2 * time.Second,
			ContinueOnError: true,
		},
	}
}

// Validate 验证配置
func (c *ScrapeConfig) Validate() error {
	if c.Browser.Timeout <= 0 {
		return fmt.Errorf("浏览器超时必须大于0")
	}
	if c.Navigation.MaxAttempts < 1 || c.Navigation.MaxAttempts > 10 {
		return fmt.Errorf("导航尝试次数必须在1-10之间")
	}
	if c.Navigation.MinDelay < 0 || c.Navigation.MaxDelay < c.Navigation.MinDelay {
		return fmt.Errorf("导航间隔无效: min=%v max=%v", c.Navigation.MinDelay, c.Navigation.MaxDelay)
	}
	if c.Resolver.BaseURL != "" {
		if err := ValidateURL(c.Resolver.BaseURL); err != nil {
			return fmt.Errorf("主站点地址无效: %w", err)
		}
	}
	if c.Resolver.NameThreshold < 0.0 || c.Resolver.NameThreshold > 1.0 {
		return fmt.Errorf("姓名相似度阈值必须在0.0-1.0之间")
	}
	if c.Pagination.MaxCycles < 1 {
		return fmt.Errorf("加载更多轮数必须大于0")
	}
	if c.Pagination.MaxRetries < 0 {
		return fmt.Errorf("加载更多重试次数不能为负数")
	}
	if c.Pagination.MaxDetailURLs < 0 || c.Extraction.MaxPublications < 0 {
		return fmt.Errorf("数量上限不能为负数")
	}
	if c.Secondary.Enabled {
		if err := ValidateURL(c.Secondary.BaseURL); err != nil {
			return fmt.Errorf("文献索引站点地址无效: %w", err)
		}
		if c.Secondary.RatePerSecond <= 0 {
			return fmt.Errorf("文献索引站点请求速率必须大于0")
		}
	}
	if c.Reconcile.TitleThreshold < 0.0 || c.Reconcile.TitleThreshold > 1.0 {
		return fmt.Errorf("标题相似度阈值必须在0.0-1.0之间")
	}
	if c.Batch.MaxSessions < 1 || c.Batch.MaxSessions > 32 {
		return fmt.Errorf("并发会话数必须在1-32之间")
	}
	return nil
}
