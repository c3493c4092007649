package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/connmon/internal/config"
	"github.com/rileyhilliard/connmon/internal/doctor"
	"github.com/rileyhilliard/connmon/internal/errors"
	"github.com/rileyhilliard/connmon/internal/sysmetrics"
	"github.com/rileyhilliard/connmon/internal/ui"
)

var (
	doctorTimeout time.Duration
	doctorFlags   Overrides
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check config and connectivity before monitoring",
	Long: `Run pre-flight checks: the config loads and validates, the selected
transport can reach its endpoint, and process metrics can be read.

Examples:
  connmon doctor
  connmon doctor --real --region live`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := config.LoadOrDefault(cfgFile)
		if cfg != nil {
			doctorFlags.Apply(cfg)
		}
		results := doctor.RunAllParallel(cmd.Context(), doctor.Checks(doctor.Options{
			Config:     cfg,
			ConfigPath: path,
			LoadErr:    err,
			System:     sysmetrics.New(),
			Timeout:    doctorTimeout,
		}))
		return reportDoctor(cmd.OutOrStdout(), results)
	},
}

func init() {
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", doctor.DefaultTimeout, "timeout for each network probe")
	doctorCmd.Flags().StringVar(&doctorFlags.Transport, "transport", "", "transport kind: mock, socketio or ssh")
	doctorCmd.Flags().StringVar(&doctorFlags.Region, "region", "", "session region: demo or live")
	doctorCmd.Flags().BoolVar(&doctorFlags.Real, "real", false, "check the Socket.IO transport")
	rootCmd.AddCommand(doctorCmd)
}

// reportDoctor prints results grouped by category and returns an error
// when any check failed.
func reportDoctor(w io.Writer, results []doctor.CheckResult) error {
	order, grouped := doctor.GroupByCategory(results)
	for _, cat := range order {
		fmt.Fprintln(w, ui.InfoStyle().Bold(true).Render(cat))
		for _, r := range grouped[cat] {
			fmt.Fprintf(w, "  %s %s\n", statusSymbol(r.Status), r.Message)
			if r.Suggestion != "" && r.Status != doctor.StatusPass {
				fmt.Fprintf(w, "    %s\n", ui.MutedStyle().Render(r.Suggestion))
			}
		}
		fmt.Fprintln(w)
	}

	counts := doctor.CountByStatus(results)
	fmt.Fprintf(w, "%d passed, %d warnings, %d failed\n",
		counts[doctor.StatusPass], counts[doctor.StatusWarn], counts[doctor.StatusFail])

	if doctor.HasFailures(results) {
		return errors.New(errors.ErrConfig,
			"Doctor found problems: "+strings.Join(doctor.Failures(results), ", "),
			"Fix the failed checks above and run 'connmon doctor' again")
	}
	return nil
}

func statusSymbol(s doctor.CheckStatus) string {
	switch s {
	case doctor.StatusPass:
		return ui.SuccessStyle().Render(ui.SymbolSuccess)
	case doctor.StatusWarn:
		return ui.WarningStyle().Render(ui.SymbolWarning)
	default:
		return ui.ErrorStyle().Render(ui.SymbolFail)
	}
}

