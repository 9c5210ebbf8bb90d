package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"chat-relay/runtime"
)

// HealthMonitor logs self metrics (RSS, CPU, attached connections) on a
// fixed interval. Useful to spot connection leaks long before they page.
type HealthMonitor struct {
	log      *slog.Logger
	sinks    *runtime.LocalSinks
	interval time.Duration
}

func NewHealthMonitor(log *slog.Logger, sinks *runtime.LocalSinks, interval time.Duration) *HealthMonitor {
	return &HealthMonitor{log: log, sinks: sinks, interval: interval}
}

func (w *HealthMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rss, cpu, status, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.log.Info("Engine health",
				"pid_status", status,
				"cpu_percent", cpu,
				"ram_bytes", rss,
				"connections", w.sinks.Len(),
			)
		}
	}
}

// selfStats retrieves technical metrics (Memory, CPU, and OS Status) for the given process.
func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
