package observability

import (
	"context"
	"log/slog"
	"lyrics-lab/tensor"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

// MemoryStats joins the numeric backend counters with process-level memory.
type MemoryStats struct {
	Tensors      int       `json:"tensors"`
	Elements     int       `json:"elements"`
	PeakElements int       `json:"peak_elements"`
	MaxElements  int       `json:"max_elements"`
	RSSBytes     uint64    `json:"rss_bytes"`
	CPUPercent   float64   `json:"cpu_percent"`
	AllocMemMb   uint64    `json:"alloc_mem_mb"`
	NumGC        uint32    `json:"num_gc"`
	At           time.Time `json:"at"`
}

// MemoryMonitor samples memory usage on demand or on a ticker.
type MemoryMonitor struct {
	log     *slog.Logger
	backend *tensor.Backend
	proc    *process.Process

	mu     sync.RWMutex
	latest MemoryStats
}

// NewMemoryMonitor watches backend and the current process. Process metrics are
// left at zero when the OS does not expose them.
func NewMemoryMonitor(log *slog.Logger, backend *tensor.Backend) *MemoryMonitor {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process metrics unavailable", "error", err)
		p = nil
	}
	return &MemoryMonitor{log: log, backend: backend, proc: p}
}

// Refresh samples every source and stores the result as the latest snapshot.
func (mm *MemoryMonitor) Refresh() MemoryStats {
	b := mm.backend.Stats()
	stats := MemoryStats{
		Tensors:      b.Tensors,
		Elements:     b.Elements,
		PeakElements: b.PeakElements,
		MaxElements:  b.MaxElements,
		At:           time.Now(),
	}

	if mm.proc != nil {
		rss, cpu, err := selfStats(mm.proc)
		if err != nil {
			mm.log.Debug("Failed to collect self stats", "err", err)
		}
		stats.RSSBytes, stats.CPUPercent = rss, cpu
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats.AllocMemMb = m.Alloc / 1024 / 1024
	stats.NumGC = m.NumGC

	mm.mu.Lock()
	mm.latest = stats
	mm.mu.Unlock()

	mm.log.Debug("Memory stats updated",
		"tensors", stats.Tensors,
		"elements", stats.Elements,
		"peak_elements", stats.PeakElements,
		"rss_mb", stats.RSSBytes/1024/1024,
		"mem_mb", stats.AllocMemMb)
	return stats
}

// Listen refreshes the snapshot every interval until ctx is done.
func (mm *MemoryMonitor) Listen(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mm.log.Debug("Memory monitor stopped")
			return
		case <-ticker.C:
			mm.Refresh()
		}
	}
}

func (mm *MemoryMonitor) GetLatest() MemoryStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latest
}

// selfStats reads resident memory and CPU usage of p.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return memInfo.RSS, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
