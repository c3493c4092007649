package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/connmon/internal/config"
	"github.com/rileyhilliard/connmon/internal/dashboard"
	"github.com/rileyhilliard/connmon/internal/errors"
	"github.com/rileyhilliard/connmon/internal/logger"
	"github.com/rileyhilliard/connmon/internal/monitor"
	"github.com/rileyhilliard/connmon/internal/ui"
)

// stopTimeout bounds the transport disconnect on shutdown.
const stopTimeout = 10 * time.Second

var (
	monitorDuration  time.Duration
	monitorDashboard bool
	monitorFlags     Overrides
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor the connection and print statistics",
	Long: `Connect to the configured service and run the monitoring loop.

Console mode prints a stats line every cycle, alerts as they fire, and a
final report when the run ends. --dashboard opens a live terminal UI instead.

Examples:
  connmon monitor
  connmon monitor --duration 5m --interval 2s
  connmon monitor --real
  connmon monitor --dashboard`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cfgFile, monitorFlags)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if monitorDashboard {
			return runDashboard(ctx, cfg)
		}

		log := logger.Default()
		if quiet {
			log = logger.Noop()
		}
		mon, err := buildMonitor(cfg, log)
		if err != nil {
			return err
		}
		return runConsole(ctx, cmd.OutOrStdout(), mon, consoleOptions{
			Duration:     monitorDuration,
			Persistent:   cfg.Session.Persistent,
			Quiet:        quiet,
			Transport:    cfg.Transport.Kind,
			SlowResponse: cfg.Alerts.SlowResponse.Seconds(),
		})
	},
}

func init() {
	monitorCmd.Flags().DurationVar(&monitorDuration, "duration", 30*time.Second, "how long to monitor (0 runs until interrupted)")
	monitorCmd.Flags().BoolVar(&monitorDashboard, "dashboard", false, "show the interactive dashboard")
	monitorCmd.Flags().DurationVar(&monitorFlags.Interval, "interval", 0, "time between monitoring cycles (e.g. 5s)")
	monitorCmd.Flags().StringVar(&monitorFlags.Transport, "transport", "", "transport kind: mock, socketio or ssh")
	monitorCmd.Flags().StringVar(&monitorFlags.Region, "region", "", "session region: demo or live")
	monitorCmd.Flags().BoolVar(&monitorFlags.Real, "real", false, "use the Socket.IO transport")
	rootCmd.AddCommand(monitorCmd)
}

type consoleOptions struct {
	Duration     time.Duration
	Persistent   bool
	Quiet        bool
	Transport    string
	SlowResponse float64
}

// runConsole drives mon until ctx ends or opts.Duration elapses, then stops
// it and prints the final report.
func runConsole(ctx context.Context, out io.Writer, mon *monitor.Monitor, opts consoleOptions) error {
	var mu sync.Mutex
	writeLine := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(out, s)
	}

	if !opts.Quiet {
		s := mon.Session()
		fmt.Fprint(out, ui.RenderHeader(ui.HeaderInfo{
			Version:   formatVersion(version),
			Transport: opts.Transport,
			Region:    string(s.Region),
			SessionID: s.ID,
			Interval:  mon.Interval().String(),
		}))
		mon.AddEventHandler(monitor.EventStatsUpdate, func(_ context.Context, ev monitor.Event) error {
			if u, ok := ev.(monitor.StatsUpdate); ok {
				writeLine(ui.RenderStatsLine(u.Stats))
			}
			return nil
		})
	}
	mon.AddEventHandler(monitor.EventAlert, func(_ context.Context, ev monitor.Event) error {
		if a, ok := ev.(monitor.AlertRaised); ok {
			writeLine(ui.RenderAlert(a.Alert))
		}
		return nil
	})

	if err := startWithSpinner(ctx, out, mon, opts); err != nil {
		return err
	}

	var deadline <-chan time.Time
	if opts.Duration > 0 {
		timer := time.NewTimer(opts.Duration)
		defer timer.Stop()
		deadline = timer.C
	}
	select {
	case <-ctx.Done():
	case <-deadline:
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	mon.Stop(stopCtx)

	mu.Lock()
	defer mu.Unlock()
	fmt.Fprint(out, ui.RenderReport(ui.Report{
		Stats:         mon.Stats(),
		Errors:        mon.ErrorLog(),
		ResponseTimes: mon.ResponseTimes(),
		SlowResponse:  opts.SlowResponse,
	}))
	return nil
}

func startWithSpinner(ctx context.Context, out io.Writer, mon *monitor.Monitor, opts consoleOptions) error {
	if opts.Quiet {
		return mon.Start(ctx, opts.Persistent)
	}
	spin := ui.NewSpinner(out, fmt.Sprintf("Connecting to %s via %s", mon.Session().Region, opts.Transport))
	spin.Start()
	if err := mon.Start(ctx, opts.Persistent); err != nil {
		spin.Fail()
		return err
	}
	spin.Success()
	return nil
}

// runDashboard runs the Bubble Tea dashboard. Log output would corrupt the
// alternate screen, so the monitor logs nowhere.
func runDashboard(ctx context.Context, cfg *config.Config) error {
	mon, err := buildMonitor(cfg, logger.Noop())
	if err != nil {
		return err
	}

	model := dashboard.NewModel(mon, dashboard.NewFeed(mon, 0), dashboard.Options{
		Persistent: cfg.Session.Persistent,
		Thresholds: monitor.AlertThresholds{
			ErrorRate:    cfg.Alerts.ErrorRate,
			SlowResponse: cfg.Alerts.SlowResponse.Seconds(),
		},
		Transport: cfg.Transport.Kind,
		Version:   formatVersion(version),
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := p.Run()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	mon.Stop(stopCtx)

	if runErr != nil && ctx.Err() == nil {
		return errors.WrapWithCode(runErr, errors.ErrConfig,
			"Dashboard exited with an error",
			"Run without --dashboard, or check that the terminal supports the alternate screen")
	}
	return nil
}
