package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/ScholarCrawl/internal/config"
	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
	"github.com/RecoveryAshes/ScholarCrawl/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀,如 SCHOLARCRAWL_BROWSER_PROXY_PASSWORD
const EnvPrefix = "SCHOLARCRAWL"

// Config 应用程序配置
type Config struct {
	Scrape      models.ScrapeConfig `mapstructure:",squash"`
	Fingerprint FingerprintConfig   `mapstructure:"fingerprint"`
	Logging     LoggingConfig       `mapstructure:"logging"`
	Output      OutputConfig        `mapstructure:"output"`
}

// FingerprintConfig 身份池配置
type FingerprintConfig struct {
	File string `mapstructure:"file"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir string `mapstructure:"base_dir"`
	Format  string `mapstructure:"format"` // json 或 yaml
}

// LoadConfig 加载配置文件
// configPath为空时依次搜索 ./configs、. 和 ~/.scholarcrawl 下的config.yaml;
// 当前目录的.env先被载入环境变量,环境变量优先于配置文件
func LoadConfig(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".scholarcrawl"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
		// 配置文件不存在,使用默认值
	} else {
		utils.Debugf("使用配置文件: %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Scrape.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv 载入.env文件,不覆盖已存在的环境变量
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("读取%s失败: %w", path, err)
	}
	utils.Debugf("已载入环境变量文件: %s", path)
	return nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	d := models.DefaultScrapeConfig()

	// 浏览器
	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.executable_path", d.Browser.ExecutablePath)
	v.SetDefault("browser.fallback_executable_path", d.Browser.FallbackExecutablePath)
	v.SetDefault("browser.timeout", d.Browser.Timeout)
	v.SetDefault("browser.persistent_profile_dir", d.Browser.PersistentProfileDir)
	v.SetDefault("browser.proxy.server", d.Browser.Proxy.Server)
	v.SetDefault("browser.proxy.username", d.Browser.Proxy.Username)
	v.SetDefault("browser.proxy.password", d.Browser.Proxy.Password)
	v.SetDefault("browser.block_resources", d.Browser.BlockResources)
	v.SetDefault("browser.no_sandbox", d.Browser.NoSandbox)

	// 导航
	v.SetDefault("navigation.max_attempts", d.Navigation.MaxAttempts)
	v.SetDefault("navigation.retry_delay", d.Navigation.RetryDelay)
	v.SetDefault("navigation.retry_jitter", d.Navigation.RetryJitter)
	v.SetDefault("navigation.min_delay", d.Navigation.MinDelay)
	v.SetDefault("navigation.max_delay", d.Navigation.MaxDelay)
	v.SetDefault("navigation.humanize", d.Navigation.Humanize)

	// 主页解析
	v.SetDefault("resolver.base_url", d.Resolver.BaseURL)
	v.SetDefault("resolver.language", d.Resolver.Language)
	v.SetDefault("resolver.name_threshold", d.Resolver.NameThreshold)
	v.SetDefault("resolver.profile_page_len", d.Resolver.ProfilePageLen)

	// 分页
	v.SetDefault("pagination.max_cycles", d.Pagination.MaxCycles)
	v.SetDefault("pagination.max_retries", d.Pagination.MaxRetries)
	v.SetDefault("pagination.retry_delay", d.Pagination.RetryDelay)
	v.SetDefault("pagination.response_wait", d.Pagination.ResponseWait)
	v.SetDefault("pagination.max_detail_urls", d.Pagination.MaxDetailURLs)

	// 解析
	v.SetDefault("extraction.follow_detail_links", d.Extraction.FollowDetailLinks)
	v.SetDefault("extraction.max_publications", d.Extraction.MaxPublications)

	// 文献索引站点
	v.SetDefault("secondary.enabled", d.Secondary.Enabled)
	v.SetDefault("secondary.base_url", d.Secondary.BaseURL)
	v.SetDefault("secondary.min_primary_results", d.Secondary.MinPrimaryResults)
	v.SetDefault("secondary.rate_per_second", d.Secondary.RatePerSecond)
	v.SetDefault("secondary.timeout", d.Secondary.Timeout)

	// 合并
	v.SetDefault("reconcile.title_threshold", d.Reconcile.TitleThreshold)

	// 批量
	v.SetDefault("batch.max_sessions", d.Batch.MaxSessions)
	v.SetDefault("batch.delay", d.Batch.Delay)
	v.SetDefault("batch.continue_on_error", d.Batch.ContinueOnError)

	// 身份池
	v.SetDefault("fingerprint.file", config.DefaultConfigFile)

	// 日志
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出
	v.SetDefault("output.base_dir", "output")
	v.SetDefault("output.format", "json")
}

// LogConfig 转换为日志系统配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// CLIOverrides 命令行参数,零值表示未设置
type CLIOverrides struct {
	Headless          *bool
	Proxy             string
	MaxSessions       int
	MinPrimaryResults *int
	NoSecondary       bool
	ListingOnly       bool
	NameThreshold     float64
	Timeout           time.Duration
	LogLevel          string
	OutputDir         string
	Format            string
}

// MergeCLIFlags 合并命令行参数到配置 (命令行优先于配置文件)
func (c *Config) MergeCLIFlags(o CLIOverrides) error {
	if o.Headless != nil {
		c.Scrape.Browser.Headless = *o.Headless
	}
	if o.Proxy != "" {
		c.Scrape.Browser.Proxy.Server = o.Proxy
	}
	if o.MaxSessions > 0 {
		c.Scrape.Batch.MaxSessions = o.MaxSessions
	}
	if o.MinPrimaryResults != nil {
		c.Scrape.Secondary.MinPrimaryResults = *o.MinPrimaryResults
	}
	if o.NoSecondary {
		c.Scrape.Secondary.Enabled = false
	}
	if o.ListingOnly {
		c.Scrape.Extraction.FollowDetailLinks = false
	}
	if o.NameThreshold > 0 {
		c.Scrape.Resolver.NameThreshold = o.NameThreshold
	}
	if o.Timeout > 0 {
		c.Scrape.Browser.Timeout = o.Timeout
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.OutputDir != "" {
		c.Output.BaseDir = o.OutputDir
	}
	if o.Format != "" {
		c.Output.Format = o.Format
	}
	return c.Scrape.Validate()
}
