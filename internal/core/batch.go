package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/ScholarCrawl/internal/crawlers"
	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
	"github.com/RecoveryAshes/ScholarCrawl/internal/utils"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// Runner 执行单个学者的抓取任务
type Runner interface {
	Run(ctx context.Context, req models.ResearcherRequest) (*models.RunResult, error)
}

// CapacitySource 提供当前主机可承受的并发会话数
type CapacitySource interface {
	CalculateMaxSessions() int
}

// BatchItem 批量任务中一位学者的结果
type BatchItem struct {
	Request  models.ResearcherRequest
	Result   *models.RunResult // 未启动时为nil
	Err      error
	Duration float64
}

// BatchSummary 批量任务摘要
type BatchSummary struct {
	Total         int
	SuccessCount  int
	FailCount     int
	Publications  int
	Degraded      int // 被拦截或中止的任务数
	TotalDuration float64
}

// BatchRunner 多学者并发抓取
// 每位学者独占一个浏览器会话,并发数取配置上限与主机资源允许值中的较小者
type BatchRunner struct {
	runner   Runner
	cfg      models.BatchConfig
	capacity CapacitySource
	monitor  *crawlers.ResourceMonitor
	progress *progressbar.ProgressBar
	sleep    crawlers.SleepFunc
}

// BatchOption BatchRunner可选项
type BatchOption func(*BatchRunner)

// WithCapacity 替换资源评估
func WithCapacity(c CapacitySource) BatchOption {
	return func(b *BatchRunner) {
		b.capacity = c
		b.monitor = nil
	}
}

// WithProgressBar 每完成一位学者推进一次进度条
func WithProgressBar(bar *progressbar.ProgressBar) BatchOption {
	return func(b *BatchRunner) {
		b.progress = bar
	}
}

// WithBatchSleep 替换启动间隔的等待函数
func WithBatchSleep(sleep crawlers.SleepFunc) BatchOption {
	return func(b *BatchRunner) {
		b.sleep = sleep
	}
}

// NewBatchRunner 创建批量执行器
func NewBatchRunner(runner Runner, cfg models.BatchConfig, opts ...BatchOption) *BatchRunner {
	b := &BatchRunner{
		runner: runner,
		cfg:    cfg,
		sleep:  crawlers.ContextSleep,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.capacity == nil {
		b.monitor = crawlers.NewResourceMonitor(crawlers.DefaultResourceMonitorConfig(cfg.MaxSessions))
		b.capacity = b.monitor
	}
	return b
}

// Concurrency 本次批量任务的并发数
func (b *BatchRunner) Concurrency() int {
	n := b.capacity.CalculateMaxSessions()
	if b.cfg.MaxSessions > 0 {
		n = min(n, b.cfg.MaxSessions)
	}
	return max(n, 1)
}

// RunAll 并发执行全部请求,结果与输入顺序一致
// ContinueOnError为false时,第一个错误会取消尚未完成的任务
func (b *BatchRunner) RunAll(ctx context.Context, reqs []models.ResearcherRequest) []BatchItem {
	items := make([]BatchItem, len(reqs))
	for i, req := range reqs {
		items[i].Request = req
	}
	if len(reqs) == 0 {
		return items
	}

	if b.monitor != nil {
		b.monitor.StartMonitoring(5 * time.Second)
		defer b.monitor.StopMonitoring()
	}

	limit := b.Concurrency()
	utils.Infof("🚀 开始批量抓取: %d位学者, 并发会话数 %d", len(reqs), limit)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	launched := 0
	for i := range reqs {
		if i > 0 && b.cfg.Delay > 0 {
			if err := b.sleep(gctx, b.cfg.Delay); err != nil {
				break
			}
		}
		if gctx.Err() != nil {
			break
		}

		launched++
		g.Go(func() error {
			start := time.Now()
			result, err := b.runOne(gctx, reqs[i])

			mu.Lock()
			items[i].Result = result
			items[i].Err = err
			items[i].Duration = time.Since(start).Seconds()
			if b.progress != nil {
				_ = b.progress.Add(1)
			}
			mu.Unlock()

			if err != nil {
				utils.Errorf("❌ [%d/%d] %s 抓取失败: %v", i+1, len(reqs), reqs[i].DisplayName, err)
				if !b.cfg.ContinueOnError {
					return fmt.Errorf("%s: %w", reqs[i].DisplayName, err)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		utils.Warnf("批量抓取中止 (continue_on_error=false): %v", err)
	}

	// 未启动的任务标记为已取消
	for i := launched; i < len(items); i++ {
		items[i].Err = context.Cause(gctx)
		if items[i].Err == nil {
			items[i].Err = context.Canceled
		}
	}

	return items
}

// runOne 执行单个任务并把panic转换为错误
func (b *BatchRunner) runOne(ctx context.Context, req models.ResearcherRequest) (result *models.RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("批量任务panic: 学者=%s, 错误=%v", req.DisplayName, r)
			err = fmt.Errorf("任务panic: %v", r)
		}
	}()
	return b.runner.Run(ctx, req)
}

// Summarize 汇总批量结果并输出日志
func Summarize(items []BatchItem) BatchSummary {
	s := BatchSummary{Total: len(items)}
	for _, item := range items {
		s.TotalDuration += item.Duration
		if item.Err != nil || item.Result == nil {
			s.FailCount++
			continue
		}
		s.SuccessCount++
		s.Publications += item.Result.Summary.Found
		if item.Result.Summary.Blocked || item.Result.Summary.Aborted {
			s.Degraded++
		}
	}

	utils.Info("==================================================")
	utils.Info("📊 批量抓取摘要")
	utils.Info("==================================================")
	utils.Infof("学者总数: %d", s.Total)
	utils.Infof("✅ 成功: %d (其中降级 %d)", s.SuccessCount, s.Degraded)
	utils.Infof("❌ 失败: %d", s.FailCount)
	utils.Infof("📚 出版物总数: %d", s.Publications)
	utils.Info("==================================================")

	for _, item := range items {
		if item.Err != nil {
			utils.Warnf("  - %s: %v", item.Request.DisplayName, item.Err)
		}
	}
	return s
}
