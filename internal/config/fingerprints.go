package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
	"github.com/RecoveryAshes/ScholarCrawl/internal/utils"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile 默认身份池配置文件路径
	DefaultConfigFile = "configs/fingerprints.yaml"

	// MaxConfigFileSize 配置文件最大大小 (1MB)
	MaxConfigFileSize = 1 * 1024 * 1024
)

//go:embed fingerprints_template.yaml
var defaultFingerprintTemplate string

// FingerprintConfigLoader 身份池配置加载器
// 负责加载、验证和解析fingerprints.yaml
type FingerprintConfigLoader struct {
	configPath string
}

// NewFingerprintConfigLoader 创建身份池配置加载器
func NewFingerprintConfigLoader(configPath string) *FingerprintConfigLoader {
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	return &FingerprintConfigLoader{
		configPath: configPath,
	}
}

// Path 返回配置文件路径
func (l *FingerprintConfigLoader) Path() string {
	return l.configPath
}

// EnsureConfigExists 确保配置文件存在,如不存在则自动生成模板
func (l *FingerprintConfigLoader) EnsureConfigExists() error {
	if _, err := os.Stat(l.configPath); os.IsNotExist(err) {
		dir := filepath.Dir(l.configPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("无法创建配置目录 [%s]: %w", dir, err)
		}

		if err := os.WriteFile(l.configPath, []byte(defaultFingerprintTemplate), 0644); err != nil {
			return fmt.Errorf("无法生成配置文件 [%s]: %w", l.configPath, err)
		}
		utils.Infof("已生成身份池配置模板: %s", l.configPath)
	}
	return nil
}

// ValidateFileSize 验证配置文件大小是否在限制内
func (l *FingerprintConfigLoader) ValidateFileSize() error {
	info, err := os.Stat(l.configPath)
	if err != nil {
		return fmt.Errorf("无法读取配置文件信息 [%s]: %w", l.configPath, err)
	}

	if info.Size() > MaxConfigFileSize {
		return &models.ConfigError{
			FilePath: l.configPath,
			Cause: fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)",
				info.Size(), MaxConfigFileSize),
		}
	}

	return nil
}

// LoadConfig 加载配置文件并解析为FingerprintPool
// 执行流程:
//  1. 确保配置文件存在 (不存在则自动创建)
//  2. 验证文件大小是否在限制内
//  3. 使用Viper解析YAML并绑定到结构体
//  4. 校验各列表条目
func (l *FingerprintConfigLoader) LoadConfig() (*models.FingerprintPool, error) {
	if err := l.EnsureConfigExists(); err != nil {
		return nil, err
	}

	if err := l.ValidateFileSize(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(l.configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		// 配置文件被其他进程占用时降级为内置身份
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
			utils.Warnf("配置文件被锁定 [%s], 使用内置身份池", l.configPath)
			return &models.FingerprintPool{
				Headers: make(map[string]string),
			}, nil
		}

		return nil, &models.ConfigError{
			FilePath: l.configPath,
			Cause:    err,
		}
	}

	var pool models.FingerprintPool
	if err := v.Unmarshal(&pool); err != nil {
		return nil, &models.ConfigError{
			FilePath: l.configPath,
			Cause:    fmt.Errorf("配置绑定失败: %w", err),
		}
	}

	if pool.Headers == nil {
		pool.Headers = make(map[string]string)
	}

	if err := validatePool(&pool); err != nil {
		return nil, &models.ConfigError{
			FilePath: l.configPath,
			Cause:    err,
		}
	}

	utils.Debugf("身份池加载完成: %d个UA, %d个视口, %d个语言区域",
		len(pool.UserAgents), len(pool.Viewports), len(pool.Locales))
	return &pool, nil
}

func validatePool(pool *models.FingerprintPool) error {
	for i, ua := range pool.UserAgents {
		if ua.UserAgent == "" {
			return fmt.Errorf("user_agents 第%d项缺少 user_agent", i+1)
		}
	}
	for i, vp := range pool.Viewports {
		if vp.Width <= 0 || vp.Height <= 0 {
			return fmt.Errorf("viewports 第%d项尺寸无效: %dx%d", i+1, vp.Width, vp.Height)
		}
		if vp.DeviceScaleFactor < 0 {
			return fmt.Errorf("viewports 第%d项缩放比例不能为负数", i+1)
		}
	}
	for i, loc := range pool.Locales {
		if loc.Locale == "" && loc.AcceptLanguage == "" {
			return fmt.Errorf("locales 第%d项缺少 locale 和 accept_language", i+1)
		}
	}
	return nil
}
