package api

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats снимок состояния процесса для /api/stats
type ProcessStats struct {
	Uptime     string  `json:"uptime"`
	CPUPercent float64 `json:"cpu_percent"`
	RSSMB      float64 `json:"rss_mb"`
	Threads    int32   `json:"threads"`
	Goroutines int     `json:"goroutines"`
	HeapMB     float64 `json:"heap_alloc_mb"`
	NumGC      uint32  `json:"num_gc"`
	ServerTime int64   `json:"server_time"`
}

// ServerMetrics собирает метрики процесса через gopsutil
type ServerMetrics struct {
	start time.Time
	proc  *process.Process // nil, если процесс недоступен gopsutil
}

// NewServerMetrics создает новый экземпляр метрик
func NewServerMetrics() *ServerMetrics {
	sm := &ServerMetrics{start: time.Now()}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		sm.proc = proc
	}
	return sm
}

// Snapshot собирает ProcessStats. Недоступные метрики процесса остаются нулевыми.
func (sm *ServerMetrics) Snapshot() ProcessStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	s := ProcessStats{
		Uptime:     formatUptime(time.Since(sm.start)),
		CPUPercent: sm.cpuPercent(),
		Goroutines: runtime.NumGoroutine(),
		HeapMB:     float64(m.HeapAlloc) / 1024 / 1024,
		NumGC:      m.NumGC,
		ServerTime: time.Now().Unix(),
	}
	if sm.proc != nil {
		if mem, err := sm.proc.MemoryInfo(); err == nil {
			s.RSSMB = float64(mem.RSS) / 1024 / 1024
		}
		if n, err := sm.proc.NumThreads(); err == nil {
			s.Threads = n
		}
	}
	return s
}

// cpuPercent CPU процесса; если он недоступен, системный за 100мс
func (sm *ServerMetrics) cpuPercent() float64 {
	if sm.proc != nil {
		if p, err := sm.proc.CPUPercent(); err == nil {
			return p
		}
	}
	if ps, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(ps) > 0 {
		return ps[0]
	}
	return 0
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}
