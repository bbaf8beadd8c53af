package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/RecoveryAshes/ScholarCrawl/internal/config"
	"github.com/RecoveryAshes/ScholarCrawl/internal/crawlers"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "检查运行环境",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("==============================================")
		fmt.Println("  ScholarCrawl 运行环境检查")
		fmt.Println("==============================================")

		allOK := true

		fmt.Printf("✅ Go版本: %s\n", runtime.Version())
		fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

		// 检查浏览器
		if bin, ok := crawlers.LocateBrowser(appConfig.Scrape.Browser); ok {
			fmt.Printf("✅ 浏览器: %s\n", bin)
		} else {
			fmt.Println("⚠️  未找到本地浏览器 - 首次启动时将自动下载Chromium")
		}

		// 检查身份池配置
		fpFile := appConfig.Fingerprint.File
		if fingerprintsFile != "" {
			fpFile = fingerprintsFile
		}
		if pool, err := config.NewFingerprintConfigLoader(fpFile).LoadConfig(); err != nil {
			fmt.Printf("❌ 身份池配置无效: %v\n", err)
			allOK = false
		} else {
			fmt.Printf("✅ 身份池: %s (UA %d, 视口 %d, 语言区域 %d)\n",
				fpFile, len(pool.UserAgents), len(pool.Viewports), len(pool.Locales))
		}

		// 检查输出目录
		if err := checkWritable(appConfig.Output.BaseDir); err != nil {
			fmt.Printf("❌ 输出目录不可写: %v\n", err)
			allOK = false
		} else {
			fmt.Printf("✅ 输出目录: %s\n", appConfig.Output.BaseDir)
		}

		// 检查主机资源
		monitor := crawlers.NewResourceMonitor(crawlers.DefaultResourceMonitorConfig(appConfig.Scrape.Batch.MaxSessions))
		fmt.Printf("✅ 当前可同时运行的浏览器会话: %d\n", monitor.CalculateMaxSessions())
		if ok, reason := monitor.CheckResourceAvailability(); !ok {
			fmt.Printf("⚠️  %s\n", reason)
		}

		fmt.Println("==============================================")
		if !allOK {
			return fmt.Errorf("环境检查未通过,请解决上述问题")
		}
		fmt.Println("✅ 环境检查通过!")
		return nil
	},
}

// checkWritable 确认目录存在且可写
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
