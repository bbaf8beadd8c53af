package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RecoveryAshes/ScholarCrawl/internal/core"
	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
	"github.com/RecoveryAshes/ScholarCrawl/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// 身份参数
	headers          []string // 自定义HTTP请求头
	validateConfig   bool     // 验证配置文件
	fingerprintsFile string

	// 抓取参数
	researcherName string
	researcherID   string
	researcherFile string
	headless       bool
	proxy          string
	maxSessions    int
	minPrimary     int
	noSecondary    bool
	listingOnly    bool
	nameThreshold  float64
	timeout        time.Duration
	outputDir      string
	format         string
)

// appConfig 在PersistentPreRunE中加载并合并命令行参数
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "scholarcrawl",
	Short: "学者出版物抓取工具",
	Long: `ScholarCrawl - 按学者姓名抓取其出版物列表

工作流程:
  • 在学术搜索引擎中按姓名解析学者主页
  • 反复"加载更多"并逐条解析出版物详情页
  • 主站结果不足时检索文献索引站点并去重合并
  • 被拦截时以新的浏览器身份重试一次
  • 支持多位学者并发抓取

示例:
  # 单个学者
  scholarcrawl -n "Mouloud Koudil"

  # 批量抓取 (每行 "ID<TAB>姓名" 或 "姓名")
  scholarcrawl -f researchers.txt --sessions 2

  # 自定义请求头
  scholarcrawl -n "Mouloud Koudil" -H "Accept-Language: fr-FR,fr;q=0.9"

  # 验证身份池配置
  scholarcrawl --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		cfg, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 命令行参数覆盖配置文件
		if err := cfg.MergeCLIFlags(cliOverrides(cmd)); err != nil {
			return fmt.Errorf("配置无效: %w", err)
		}
		if verbose && logLevel == "" {
			cfg.Logging.Level = "debug"
		}

		// 初始化日志系统
		if err := utils.InitLogger(cfg.LogConfig()); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}

		appConfig = cfg
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		fpFile := appConfig.Fingerprint.File
		if fingerprintsFile != "" {
			fpFile = fingerprintsFile
		}

		// 如果用户请求验证配置
		if validateConfig {
			return runValidateConfig(fpFile)
		}

		// 如果没有提供任何参数,显示帮助信息
		if researcherName == "" && researcherFile == "" {
			return cmd.Help()
		}

		if err := ValidateFlags(researcherName, researcherFile, nameThreshold, maxSessions, format); err != nil {
			return err
		}

		// Ctrl+C 取消正在进行的任务,已收集的部分结果仍会写入报告
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		provider, err := core.LoadFingerprintProvider(fpFile, headers)
		if err != nil {
			return fmt.Errorf("创建浏览器身份提供者失败: %w", err)
		}
		utils.Debugf("当前附加请求头: %s", provider.SafeHeaders())
		if appConfig.Scrape.Browser.Proxy.Enabled() {
			utils.Infof("使用代理: %s", utils.NewRedactor().RedactProxy(appConfig.Scrape.Browser.Proxy.Server))
		}

		reporter, err := utils.NewReporter(appConfig.Output.BaseDir, appConfig.Output.Format)
		if err != nil {
			return err
		}

		pipeline := core.NewPipeline(appConfig.Scrape, provider)

		// 批量模式
		if researcherFile != "" {
			return runBatch(ctx, pipeline, reporter)
		}
		return runSingle(ctx, pipeline, reporter)
	},
}

// runSingle 抓取单个学者
func runSingle(ctx context.Context, pipeline *core.Pipeline, reporter *utils.Reporter) error {
	req := models.ResearcherRequest{ResearcherID: researcherID, DisplayName: researcherName}
	result, runErr := pipeline.Run(ctx, req)
	if result == nil {
		return fmt.Errorf("抓取失败: %w", runErr)
	}

	if _, err := reporter.GenerateReport(result); err != nil {
		return fmt.Errorf("生成报告失败: %w", err)
	}

	// 显示统计结果
	s := result.Summary
	fmt.Println("\n==================================================")
	fmt.Println("📊 抓取统计")
	fmt.Println("==================================================")
	fmt.Printf("👤 学者: %s\n", result.ResearcherName)
	if result.Profile != nil {
		fmt.Printf("🔗 主页: %s (匹配度 %.2f)\n", result.Profile.ProfileURL, result.Profile.MatchConfidence)
	} else {
		fmt.Println("🔗 主页: 未找到")
	}
	fmt.Printf("✅ 出版物总数: %d\n", s.Found)
	fmt.Printf("✅ 主站: %d\n", s.FromPrimary)
	fmt.Printf("✅ 文献索引站点: %d\n", s.FromSecondary)
	fmt.Printf("❌ 跳过: %d\n", s.Skipped)
	if s.Blocked {
		fmt.Println("⚠️  抓取过程中被拦截")
	}
	if s.Aborted {
		fmt.Println("⚠️  任务已中止,结果不完整")
	}
	fmt.Printf("⏱️  总耗时: %.2f秒\n", result.Duration)
	fmt.Println("==================================================")

	if runErr != nil {
		return fmt.Errorf("抓取失败: %w", runErr)
	}
	utils.Info("✨ 抓取任务完成!")
	return nil
}

// runBatch 并发抓取文件中的全部学者
func runBatch(ctx context.Context, pipeline *core.Pipeline, reporter *utils.Reporter) error {
	reqs, err := utils.ReadResearchersFromFile(researcherFile)
	if err != nil {
		return fmt.Errorf("读取学者列表失败: %w", err)
	}

	bar := utils.NewProgressBar(len(reqs), "抓取学者")
	runner := core.NewBatchRunner(pipeline, appConfig.Scrape.Batch, core.WithProgressBar(bar))
	items := runner.RunAll(ctx, reqs)
	_ = bar.Finish()
	fmt.Println()

	results := make([]*models.RunResult, 0, len(items))
	for _, item := range items {
		if item.Result == nil {
			continue
		}
		results = append(results, item.Result)
		if _, err := reporter.GenerateReport(item.Result); err != nil {
			utils.Errorf("生成报告失败 [%s]: %v", item.Request.DisplayName, err)
		}
	}
	if _, err := reporter.GenerateBatchSummary(results); err != nil {
		return fmt.Errorf("生成批量汇总失败: %w", err)
	}

	summary := core.Summarize(items)
	if summary.FailCount > 0 && !appConfig.Scrape.Batch.ContinueOnError {
		return fmt.Errorf("批量抓取中止: %d位学者失败", summary.FailCount)
	}
	utils.Info("✨ 批量抓取任务完成!")
	return nil
}

// runValidateConfig 验证身份池与请求头配置并输出脱敏后的结果
func runValidateConfig(fpFile string) error {
	utils.Info("🔍 验证浏览器身份配置...")
	provider, err := core.LoadFingerprintProvider(fpFile, headers)
	if err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	fp, err := provider.Next()
	if err != nil {
		return fmt.Errorf("生成浏览器身份失败: %w", err)
	}

	utils.Info("✅ 配置验证通过!")
	utils.Infof("身份池文件: %s", fpFile)
	utils.Infof("示例身份: UA=%s 视口=%dx%d 语言=%s 时区=%s",
		fp.UserAgent, fp.Viewport.Width, fp.Viewport.Height, fp.AcceptLanguage, fp.Timezone)
	utils.Infof("当前有效的附加请求头: %s", provider.SafeHeaders())
	return nil
}

// cliOverrides 收集用户显式设置的命令行参数
func cliOverrides(cmd *cobra.Command) core.CLIOverrides {
	o := core.CLIOverrides{
		Proxy:         proxy,
		MaxSessions:   maxSessions,
		NoSecondary:   noSecondary,
		ListingOnly:   listingOnly,
		NameThreshold: nameThreshold,
		Timeout:       timeout,
		LogLevel:      logLevel,
		OutputDir:     outputDir,
		Format:        format,
	}
	flags := cmd.Flags()
	if flags.Changed("headless") {
		o.Headless = &headless
	}
	if flags.Changed("min-primary") {
		o.MinPrimaryResults = &minPrimary
	}
	return o
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ScholarCrawl %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// 身份参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证身份池配置文件正确性")
	rootCmd.PersistentFlags().StringVar(&fingerprintsFile, "fingerprints", "", "身份池配置文件路径 (默认: configs/fingerprints.yaml)")

	// 抓取参数
	rootCmd.Flags().StringVarP(&researcherName, "name", "n", "", "学者姓名 (必需,除非使用 --researcher-file)")
	rootCmd.Flags().StringVar(&researcherID, "id", "", "学者ID,原样写入报告")
	rootCmd.Flags().StringVarP(&researcherFile, "researcher-file", "f", "", "学者列表文件路径")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.Flags().StringVar(&proxy, "proxy", "", "上游代理地址,如 http://127.0.0.1:8080")
	rootCmd.Flags().IntVar(&maxSessions, "sessions", 0, "并发浏览器会话上限 (1-32)")
	rootCmd.Flags().IntVar(&minPrimary, "min-primary", 5, "主站结果少于该值时检索文献索引站点,0表示从不检索")
	rootCmd.Flags().BoolVar(&noSecondary, "no-secondary", false, "禁用文献索引站点")
	rootCmd.Flags().BoolVar(&listingOnly, "listing-only", false, "只使用主页列表,不访问详情页")
	rootCmd.Flags().Float64Var(&nameThreshold, "name-threshold", 0, "姓名相似度阈值 (0.0-1.0)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "浏览器导航超时,如 60s")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "输出目录")
	rootCmd.Flags().StringVar(&format, "format", "", "报告格式 (json|yaml)")

	// 添加子命令
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
