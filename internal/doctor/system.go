package doctor

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/connmon/internal/monitor"
)

// SystemMetricsCheck takes one sample from the process metrics provider.
// A failure only means stats will omit memory and CPU, so it warns.
type SystemMetricsCheck struct {
	Provider monitor.SystemMetricsProvider
}

func (c *SystemMetricsCheck) Name() string     { return "process_metrics" }
func (c *SystemMetricsCheck) Category() string { return "SYSTEM" }

func (c *SystemMetricsCheck) Run(ctx context.Context) CheckResult {
	sample, err := c.Provider.Sample(ctx)
	if err != nil {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "Process metrics unavailable: " + err.Error(),
			Suggestion: "Stats will report without memory and CPU usage",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("Memory %.1f MB, CPU %.1f%%", sample.MemoryMB, sample.CPUPercent),
	}
}
