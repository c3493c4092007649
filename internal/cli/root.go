package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rileyhilliard/connmon/internal/errors"
	"github.com/rileyhilliard/connmon/internal/logger"
	"github.com/rileyhilliard/connmon/internal/ui"
)

// Global flags
var (
	cfgFile string
	verbose bool
	quiet   bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "connmon",
	Short: "Monitor the health of a long-lived connection",
	Long: `connmon keeps a connection to a remote service open, probes it on a
fixed interval, and reports connection, latency, error and process
statistics with threshold alerts.

Examples:
  connmon monitor --duration 1m
  connmon monitor --dashboard
  connmon serve
  connmon init`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.EnableDebug(verbose)
		if noColor || !term.IsTerminal(int(os.Stdout.Fd())) {
			ui.DisableColors()
		}
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for connmon.

Examples:
  # Bash
  connmon completion bash > /etc/bash_completion.d/connmon

  # Zsh
  connmon completion zsh > "${fpath[1]}/_connmon"

  # Fish
  connmon completion fish > ~/.config/fish/completions/connmon.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(out)
		default:
			return errors.New(errors.ErrConfig,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .connmon.yaml, then ~/.config/connmon/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "print only alerts and the final report")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(completionCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
