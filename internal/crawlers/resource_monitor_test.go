package crawlers

import (
	"errors"
	"runtime"
	"testing"
)

const gb = 1024 * 1024 * 1024

func newTestMonitor(available uint64, cpuUsage float64, memErr error) *ResourceMonitor {
	rm := &ResourceMonitor{
		config: ResourceMonitorConfig{
			SafetyReserveMemory: gb,
			SessionMemoryUsage:  gb / 2,
			CPULoadThreshold:    80,
			MaxSessionsLimit:    4,
		},
		memoryFn: func() (uint64, uint64, error) { return available, 16 * gb, memErr },
		cpuFn:    func() (float64, error) { return cpuUsage, nil },
	}
	rm.sample()
	return rm
}

func TestResourceMonitor_CalculateMaxSessions(t *testing.T) {
	limit := min(4, runtime.NumCPU())

	tests := []struct {
		name      string
		available uint64
		cpu       float64
		want      int
	}{
		{name: "内存充足受配置上限约束", available: 16 * gb, cpu: 10, want: limit},
		{name: "内存只够两个会话", available: 2 * gb, cpu: 10, want: min(2, limit)},
		{name: "内存低于保留值至少为1", available: gb / 2, cpu: 10, want: 1},
		{name: "CPU过载时减半", available: 16 * gb, cpu: 95, want: max(limit/2, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := newTestMonitor(tt.available, tt.cpu, nil)
			if got := rm.CalculateMaxSessions(); got != tt.want {
				t.Errorf("CalculateMaxSessions() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResourceMonitor_CheckResourceAvailability(t *testing.T) {
	tests := []struct {
		name      string
		available uint64
		cpu       float64
		want      bool
	}{
		{name: "资源充足", available: 8 * gb, cpu: 10, want: true},
		{name: "内存不足", available: gb, cpu: 10, want: false},
		{name: "CPU过载", available: 8 * gb, cpu: 99, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := newTestMonitor(tt.available, tt.cpu, nil)
			got, reason := rm.CheckResourceAvailability()
			if got != tt.want {
				t.Errorf("CheckResourceAvailability() = %v (%s), want %v", got, reason, tt.want)
			}
			if !got && reason == "" {
				t.Error("不允许时应给出原因")
			}
		})
	}
}

func TestResourceMonitor_MemoryError(t *testing.T) {
	// 采样失败时按4GB可用估算: (4GB-1GB)/0.5GB = 6, 受上限约束
	rm := newTestMonitor(0, 0, errors.New("unsupported"))
	if got, want := rm.CalculateMaxSessions(), min(4, runtime.NumCPU()); got != want {
		t.Errorf("CalculateMaxSessions() = %d, want %d", got, want)
	}
}

func TestResourceMonitor_StartStop(t *testing.T) {
	rm := newTestMonitor(8*gb, 0, nil)
	rm.StartMonitoring(10 * 1000 * 1000)
	rm.StartMonitoring(10 * 1000 * 1000)
	rm.StopMonitoring()
	rm.StopMonitoring()
	if rm.isRunning {
		t.Error("停止后isRunning应为false")
	}
}
