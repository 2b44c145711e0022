package watch

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// HealthStatus summarises the watcher's view of the store.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusFailed   HealthStatus = "failed"
)

// storeHealth tracks consecutive store failures. poll() writes from the
// watcher goroutine while Health() reads from HTTP handlers, so fields sit
// behind a mutex.
type storeHealth struct {
	mu          sync.Mutex
	failures    int
	lastErr     string
	lastFailure time.Time
}

func (h *storeHealth) recordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = 0
	h.lastErr = ""
}

func (h *storeHealth) recordFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures++
	h.lastErr = err.Error()
	h.lastFailure = time.Now()
}

// snapshot returns a consistent copy of the health fields under the lock.
func (h *storeHealth) snapshot(threshold int) (status HealthStatus, failures int, lastErr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	failures = h.failures
	lastErr = h.lastErr
	switch {
	case h.failures >= threshold:
		status = StatusFailed
	case h.failures > 0:
		status = StatusDegraded
	default:
		status = StatusHealthy
	}
	return
}

// ProcessStats is a point-in-time reading of this server process.
type ProcessStats struct {
	CPUPercent float64 `json:"cpuPercent"`
	RSSBytes   uint64  `json:"rssBytes"`
}

// readProcessStats samples the current process. Failures yield zero values;
// health reporting must not fail because sampling did.
func readProcessStats() ProcessStats {
	var stats ProcessStats
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return stats
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}
	return stats
}
