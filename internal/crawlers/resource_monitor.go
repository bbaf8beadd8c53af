package crawlers

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor 主机资源监控器
// 职责: 采样可用内存与CPU负载,计算可同时运行的浏览器会话数
type ResourceMonitor struct {
	config ResourceMonitorConfig

	// 采样函数,测试中可替换
	memoryFn func() (available, total uint64, err error)
	cpuFn    func() (float64, error)

	mu            sync.RWMutex
	lastAvailable uint64
	lastTotal     uint64
	lastCPUUsage  float64

	// 缓存的CalculateMaxSessions结果
	cachedMax     int
	lastCacheTime time.Time
	cacheMu       sync.Mutex

	cancelFunc context.CancelFunc
	isRunning  bool
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64 // 为系统与其他进程保留的内存(字节)
	SessionMemoryUsage  int64 // 单个无头浏览器会话的平均内存消耗(字节)
	CPULoadThreshold    int   // CPU负载阈值(%),超过时会话数减半;>=200表示不检查
	MaxSessionsLimit    int   // 绝对上限
}

// DefaultResourceMonitorConfig 默认配置: 保留1GB,每个会话按400MB估算
func DefaultResourceMonitorConfig(maxSessions int) ResourceMonitorConfig {
	return ResourceMonitorConfig{
		SafetyReserveMemory: 1024 * 1024 * 1024,
		SessionMemoryUsage:  400 * 1024 * 1024,
		CPULoadThreshold:    85,
		MaxSessionsLimit:    maxSessions,
	}
}

// NewResourceMonitor 创建资源监控器实例并立即采样一次
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.SessionMemoryUsage <= 0 {
		config.SessionMemoryUsage = 400 * 1024 * 1024
	}
	if config.MaxSessionsLimit < 1 {
		config.MaxSessionsLimit = 1
	}
	rm := &ResourceMonitor{
		config:   config,
		memoryFn: virtualMemory,
		cpuFn:    cpuPercent,
	}
	rm.sample()
	log.Info().Msgf("系统总内存: %.2f GB, 可用: %.2f GB",
		float64(rm.lastTotal)/(1024*1024*1024), float64(rm.lastAvailable)/(1024*1024*1024))
	return rm
}

func virtualMemory() (uint64, uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}
	return vm.Available, vm.Total, nil
}

// cpuPercent 100毫秒采样窗口内所有核心的平均使用率
func cpuPercent() (float64, error) {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("CPU使用率数据为空")
	}
	return percentages[0], nil
}

// sample 采样一次内存与CPU
func (rm *ResourceMonitor) sample() {
	available, total, err := rm.memoryFn()
	if err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败,按4GB可用估算")
		available, total = 4*1024*1024*1024, 4*1024*1024*1024
	}
	usage, err := rm.cpuFn()
	if err != nil {
		log.Warn().Err(err).Msg("获取CPU使用率失败")
		usage = 0
	}

	rm.mu.Lock()
	rm.lastAvailable = available
	rm.lastTotal = total
	rm.lastCPUUsage = usage
	rm.mu.Unlock()
}

// StartMonitoring 启动后台周期采样 (幂等)
func (rm *ResourceMonitor) StartMonitoring(interval time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.isRunning {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	rm.cancelFunc = cancel
	rm.isRunning = true
	go rm.monitoringLoop(ctx, interval)
}

func (rm *ResourceMonitor) monitoringLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rm.sample()
		}
	}
}

// StopMonitoring 停止后台采样
func (rm *ResourceMonitor) StopMonitoring() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.isRunning && rm.cancelFunc != nil {
		rm.cancelFunc()
		rm.isRunning = false
		rm.cancelFunc = nil
	}
}

// CalculateMaxSessions 计算当前允许的并发会话数,结果缓存1秒
// 取 内存可容纳数、CPU核数、配置上限 三者最小值,CPU过载时减半,至少为1
func (rm *ResourceMonitor) CalculateMaxSessions() int {
	rm.cacheMu.Lock()
	defer rm.cacheMu.Unlock()
	if time.Since(rm.lastCacheTime) < time.Second && rm.cachedMax > 0 {
		return rm.cachedMax
	}

	rm.mu.RLock()
	available := int64(rm.lastAvailable)
	usage := rm.lastCPUUsage
	rm.mu.RUnlock()

	byMemory := 1
	if surplus := available - rm.config.SafetyReserveMemory; surplus > 0 {
		byMemory = int(surplus / rm.config.SessionMemoryUsage)
	}

	result := min(byMemory, runtime.NumCPU(), rm.config.MaxSessionsLimit)
	if rm.config.CPULoadThreshold < 200 && usage > float64(rm.config.CPULoadThreshold) {
		log.Warn().Msgf("CPU负载过高(当前%.1f%%),并发会话数减半", usage)
		result /= 2
	}
	result = max(result, 1)

	rm.cachedMax = result
	rm.lastCacheTime = time.Now()
	return result
}

// CheckResourceAvailability 检查当前资源是否允许再启动一个会话
func (rm *ResourceMonitor) CheckResourceAvailability() (canCreate bool, reason string) {
	rm.mu.RLock()
	available := int64(rm.lastAvailable)
	usage := rm.lastCPUUsage
	rm.mu.RUnlock()

	if available-rm.config.SafetyReserveMemory < rm.config.SessionMemoryUsage {
		availableMB := available / (1024 * 1024)
		log.Warn().Msgf("可用内存不足(当前%dMB),暂缓启动浏览器", availableMB)
		return false, fmt.Sprintf("内存不足(当前%dMB)", availableMB)
	}
	if rm.config.CPULoadThreshold < 200 && usage > float64(rm.config.CPULoadThreshold) {
		return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", usage)
	}
	return true, ""
}
