// Package sysmetrics reports the memory and CPU usage of the running
// process for performance snapshots.
package sysmetrics

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/procfs"

	"github.com/rileyhilliard/connmon/internal/monitor"
)

// New returns the best provider for this platform: procfs where /proc is
// mounted, the Go runtime's own accounting elsewhere.
func New() monitor.SystemMetricsProvider {
	p, err := NewProcProvider(procfs.DefaultMountPoint)
	if err != nil {
		return RuntimeProvider{}
	}
	if _, err := p.fs.Self(); err != nil {
		return RuntimeProvider{}
	}
	return p
}

// ProcProvider reads the process's own stat file through procfs. CPU
// percent is the change in user+system CPU time over the wall time since
// the previous call, so one saturated core reads 100. The first call has
// no baseline and reports 0.
type ProcProvider struct {
	fs  procfs.FS
	now func() time.Time

	mu       sync.Mutex
	havePrev bool
	prevCPU  float64
	prevAt   time.Time
}

// NewProcProvider reads from the given procfs mount point.
func NewProcProvider(mountPoint string) (*ProcProvider, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("open procfs at %s: %w", mountPoint, err)
	}
	return &ProcProvider{fs: fs, now: time.Now}, nil
}

func (p *ProcProvider) Sample(ctx context.Context) (monitor.SystemSample, error) {
	if err := ctx.Err(); err != nil {
		return monitor.SystemSample{}, err
	}

	proc, err := p.fs.Self()
	if err != nil {
		return monitor.SystemSample{}, fmt.Errorf("resolve self: %w", err)
	}
	stat, err := proc.Stat()
	if err != nil {
		return monitor.SystemSample{}, fmt.Errorf("read stat: %w", err)
	}

	return monitor.SystemSample{
		MemoryMB:   float64(stat.ResidentMemory()) / (1024 * 1024),
		CPUPercent: p.cpuPercent(stat.CPUTime(), p.now()),
	}, nil
}

func (p *ProcProvider) cpuPercent(cpu float64, at time.Time) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	prevCPU, prevAt, had := p.prevCPU, p.prevAt, p.havePrev
	p.prevCPU, p.prevAt, p.havePrev = cpu, at, true

	if !had {
		return 0
	}
	wall := at.Sub(prevAt).Seconds()
	used := cpu - prevCPU
	if wall <= 0 || used < 0 {
		return 0
	}
	return used / wall * 100
}

// RuntimeProvider reports memory obtained from the OS by the Go runtime.
// It has no CPU source and always reports 0 for CPU.
type RuntimeProvider struct{}

func (RuntimeProvider) Sample(ctx context.Context) (monitor.SystemSample, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return monitor.SystemSample{MemoryMB: float64(ms.Sys) / (1024 * 1024)}, nil
}
