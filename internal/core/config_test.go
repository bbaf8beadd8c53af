package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RecoveryAshes/ScholarCrawl/internal/config"
	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	d := models.DefaultScrapeConfig()
	if cfg.Scrape.Browser.Timeout != d.Browser.Timeout || !cfg.Scrape.Browser.Headless {
		t.Errorf("Browser = %+v", cfg.Scrape.Browser)
	}
	if cfg.Scrape.Resolver.NameThreshold != 0.8 || cfg.Scrape.Reconcile.TitleThreshold != 0.85 {
		t.Errorf("阈值 = %v / %v", cfg.Scrape.Resolver.NameThreshold, cfg.Scrape.Reconcile.TitleThreshold)
	}
	if cfg.Scrape.Secondary.MinPrimaryResults != 5 || cfg.Scrape.Batch.MaxSessions != 4 {
		t.Errorf("Scrape = %+v", cfg.Scrape)
	}
	if cfg.Fingerprint.File != config.DefaultConfigFile {
		t.Errorf("Fingerprint.File = %s", cfg.Fingerprint.File)
	}
	if cfg.Output.Format != "json" || cfg.Output.BaseDir != "output" {
		t.Errorf("Output = %+v", cfg.Output)
	}
	if lc := cfg.LogConfig(); lc.Level != "info" || lc.MaxSize != 10 || !lc.Compress {
		t.Errorf("LogConfig() = %+v", lc)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfigFile(t, `
browser:
  headless: false
  timeout: 90s
navigation:
  max_attempts: 5
  min_delay: 2s
  max_delay: 4s
secondary:
  min_primary_results: 10
batch:
  max_sessions: 2
logging:
  level: debug
output:
  format: yaml
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	s := cfg.Scrape
	if s.Browser.Headless || s.Browser.Timeout != 90*time.Second {
		t.Errorf("Browser = %+v", s.Browser)
	}
	if s.Navigation.MaxAttempts != 5 || s.Navigation.MinDelay != 2*time.Second {
		t.Errorf("Navigation = %+v", s.Navigation)
	}
	if s.Secondary.MinPrimaryResults != 10 || s.Batch.MaxSessions != 2 {
		t.Errorf("Scrape = %+v", s)
	}
	// 未出现在文件中的键保持默认值
	if s.Secondary.BaseURL != "https://dblp.org" || s.Pagination.MaxCycles != 50 {
		t.Errorf("默认值丢失: %+v", s)
	}
	if cfg.Logging.Level != "debug" || cfg.Output.Format != "yaml" {
		t.Errorf("Logging/Output = %+v / %+v", cfg.Logging, cfg.Output)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfigFile(t, "batch:\n  max_sessions: 2\n")
	t.Setenv("SCHOLARCRAWL_BATCH_MAX_SESSIONS", "6")
	t.Setenv("SCHOLARCRAWL_BROWSER_PROXY_PASSWORD", "s3cret")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Scrape.Batch.MaxSessions != 6 {
		t.Errorf("MaxSessions = %d, want 6", cfg.Scrape.Batch.MaxSessions)
	}
	if cfg.Scrape.Browser.Proxy.Password != "s3cret" {
		t.Errorf("Proxy.Password = %q", cfg.Scrape.Browser.Proxy.Password)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantConfig bool
	}{
		{name: "YAML语法错误", content: "browser: [headless\n", wantConfig: true},
		{name: "阈值超出范围", content: "resolver:\n  name_threshold: 1.5\n"},
		{name: "导航间隔颠倒", content: "navigation:\n  min_delay: 5s\n  max_delay: 1s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfigFile(t, tt.content))
			if err == nil {
				t.Fatal("期望返回错误")
			}
			var cfgErr *models.ConfigError
			if got := errors.As(err, &cfgErr); got != tt.wantConfig {
				t.Errorf("ConfigError = %v, want %v (err=%v)", got, tt.wantConfig, err)
			}
		})
	}
}

func TestMergeCLIFlags(t *testing.T) {
	headless := false
	minPrimary := 0

	tests := []struct {
		name    string
		o       CLIOverrides
		check   func(t *testing.T, c *Config)
		wantErr bool
	}{
		{
			name: "零值不覆盖",
			o:    CLIOverrides{},
			check: func(t *testing.T, c *Config) {
				if !c.Scrape.Browser.Headless || c.Scrape.Batch.MaxSessions != 4 || !c.Scrape.Secondary.Enabled {
					t.Errorf("Scrape = %+v", c.Scrape)
				}
			},
		},
		{
			name: "命令行优先",
			o: CLIOverrides{
				Headless:          &headless,
				Proxy:             "http://127.0.0.1:8080",
				MaxSessions:       8,
				MinPrimaryResults: &minPrimary,
				ListingOnly:       true,
				Timeout:           time.Minute,
				LogLevel:          "debug",
				OutputDir:         "/tmp/out",
				Format:            "yaml",
			},
			check: func(t *testing.T, c *Config) {
				s := c.Scrape
				if s.Browser.Headless || s.Browser.Proxy.Server != "http://127.0.0.1:8080" || s.Browser.Timeout != time.Minute {
					t.Errorf("Browser = %+v", s.Browser)
				}
				if s.Batch.MaxSessions != 8 || s.Secondary.MinPrimaryResults != 0 || s.Extraction.FollowDetailLinks {
					t.Errorf("Scrape = %+v", s)
				}
				if c.Logging.Level != "debug" || c.Output.BaseDir != "/tmp/out" || c.Output.Format != "yaml" {
					t.Errorf("Logging/Output = %+v / %+v", c.Logging, c.Output)
				}
			},
		},
		{
			name: "禁用文献索引站点",
			o:    CLIOverrides{NoSecondary: true},
			check: func(t *testing.T, c *Config) {
				if c.Scrape.Secondary.Enabled {
					t.Error("Secondary.Enabled 应为false")
				}
			},
		},
		{
			name:    "合并后验证失败",
			o:       CLIOverrides{NameThreshold: 1.5},
			wantErr: true,
		},
		{
			name:    "并发数超出上限",
			o:       CLIOverrides{MaxSessions: 64},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Scrape: models.DefaultScrapeConfig()}
			err := c.MergeCLIFlags(tt.o)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MergeCLIFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, c)
			}
		})
	}
}
