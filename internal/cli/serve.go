package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/connmon/internal/config"
	"github.com/rileyhilliard/connmon/internal/logger"
	"github.com/rileyhilliard/connmon/internal/monitor"
	"github.com/rileyhilliard/connmon/internal/server"
	"github.com/rileyhilliard/connmon/internal/ui"
)

var (
	serveAddr      string
	serveAutoStart bool
	serveFlags     Overrides
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stats over HTTP, WebSocket and Prometheus",
	Long: `Run the monitor behind an HTTP API.

Endpoints:
  GET  /api/stats     current statistics
  GET  /api/status    monitor state and session
  GET  /api/history   recent connection, snapshot and error records
  POST /api/start     start monitoring (bearer token when server.admin_token is set)
  POST /api/stop      stop monitoring
  GET  /ws            stats_update and alert push stream
  GET  /metrics       Prometheus metrics

Examples:
  connmon serve
  connmon serve --addr 127.0.0.1:9000 --start`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cfgFile, serveFlags)
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		mon, err := buildMonitor(cfg, logger.Default())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cmd.OutOrStdout(), mon, cfg, serveAutoStart)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from server.addr)")
	serveCmd.Flags().BoolVar(&serveAutoStart, "start", false, "start monitoring immediately instead of waiting for POST /api/start")
	serveCmd.Flags().DurationVar(&serveFlags.Interval, "interval", 0, "time between monitoring cycles (e.g. 5s)")
	serveCmd.Flags().StringVar(&serveFlags.Transport, "transport", "", "transport kind: mock, socketio or ssh")
	serveCmd.Flags().BoolVar(&serveFlags.Real, "real", false, "use the Socket.IO transport")
	rootCmd.AddCommand(serveCmd)
}

// runServe serves until ctx ends or the listener fails, then shuts the
// server down and stops the monitor.
func runServe(ctx context.Context, out io.Writer, mon *monitor.Monitor, cfg *config.Config, autoStart bool) error {
	metrics := newExporter(mon)
	srv := server.New(mon, server.Options{
		Addr:         cfg.Server.Addr,
		AdminToken:   cfg.Server.AdminToken,
		PushInterval: cfg.Server.PushInterval,
		Persistent:   cfg.Session.Persistent,
		Metrics:      metrics.Handler(),
	})

	if autoStart {
		if err := mon.Start(ctx, cfg.Session.Persistent); err != nil {
			return err
		}
	}

	if !quiet {
		fmt.Fprintf(out, "%s serving on %s (session %s)\n",
			ui.SuccessStyle().Render(ui.SymbolConnected), cfg.Server.Addr, mon.Session().ID)
		if cfg.Server.AdminToken == "" {
			ui.FprintWarning(out, "server.admin_token is not set; anyone who can reach %s can start and stop monitoring", cfg.Server.Addr)
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Default().Warn("server shutdown: %v", err)
	}
	mon.Stop(shutdownCtx)
	return runErr
}
