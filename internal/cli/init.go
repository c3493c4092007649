package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rileyhilliard/connmon/internal/config"
	"github.com/rileyhilliard/connmon/internal/errors"
	"github.com/rileyhilliard/connmon/internal/transport"
	"github.com/rileyhilliard/connmon/internal/ui"
	"github.com/rileyhilliard/connmon/pkg/sshutil"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	// Path overrides where the file is written.
	Path   string
	Global bool
	// Force rewrites an existing file from defaults instead of updating it.
	Force          bool
	NonInteractive bool

	Transport string
	Region    string
	SSID      string
	SSHHost   string
}

var initOpts InitOptions

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .connmon.yaml config file",
	Long: `Create a config file for connmon.

When stdin is a terminal, init asks for the transport, region and
credentials. Otherwise the values come from flags. If the file already
exists, only the given values are updated and the rest of the file,
comments included, is kept. Use --force to start over from defaults.

Examples:
  connmon init
  connmon init --transport socketio --region live --ssid "$SSID"
  connmon init --transport ssh --ssh-host mybox --global`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := initOpts
		if opts.Path == "" && cfgFile != "" {
			opts.Path = cfgFile
		}
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			opts.NonInteractive = true
		}
		return Init(cmd.OutOrStdout(), opts)
	},
}

func init() {
	initCmd.Flags().BoolVar(&initOpts.Global, "global", false, "write the global config instead of ./"+config.ConfigFileName)
	initCmd.Flags().BoolVar(&initOpts.Force, "force", false, "overwrite an existing config with defaults")
	initCmd.Flags().BoolVar(&initOpts.NonInteractive, "non-interactive", false, "skip prompts and use flag values")
	initCmd.Flags().StringVar(&initOpts.Transport, "transport", "", "transport kind: mock, socketio or ssh")
	initCmd.Flags().StringVar(&initOpts.Region, "region", "", "session region: demo or live")
	initCmd.Flags().StringVar(&initOpts.SSID, "ssid", "", "session id for the socketio transport")
	initCmd.Flags().StringVar(&initOpts.SSHHost, "ssh-host", "", "ssh_config alias or user@host for the ssh transport")
	rootCmd.AddCommand(initCmd)
}

// Init writes or updates a config file.
func Init(out io.Writer, opts InitOptions) error {
	path := opts.Path
	switch {
	case path != "":
	case opts.Global:
		path = config.GlobalConfigPath()
	default:
		path = filepath.Join(".", config.ConfigFileName)
	}

	_, statErr := os.Stat(path)
	exists := statErr == nil

	if !opts.NonInteractive {
		if err := promptInit(&opts, exists); err != nil {
			return err
		}
	}

	if exists && !opts.Force {
		return updateConfig(out, path, opts)
	}
	return writeConfig(out, path, opts)
}

// writeConfig writes defaults plus the chosen values.
func writeConfig(out io.Writer, path string, opts InitOptions) error {
	cfg := config.DefaultConfig()
	if opts.Transport != "" {
		cfg.Transport.Kind = strings.ToLower(opts.Transport)
	}
	if opts.Region != "" {
		cfg.Session.Region = strings.ToLower(opts.Region)
	}
	cfg.Session.SSID = opts.SSID
	cfg.SSH.Host = opts.SSHHost

	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.Write(path, cfg); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't write "+path,
			"Check that the directory is writable")
	}
	fmt.Fprintf(out, "%s Wrote %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), path)
	return nil
}

// updateConfig sets only the given values in an existing file, then checks
// that the result still loads and validates.
func updateConfig(out io.Writer, path string, opts InitOptions) error {
	updates := []struct{ key, value string }{
		{"transport.kind", strings.ToLower(opts.Transport)},
		{"session.region", strings.ToLower(opts.Region)},
		{"session.ssid", opts.SSID},
		{"ssh.host", opts.SSHHost},
	}

	changed := 0
	for _, u := range updates {
		if u.value == "" {
			continue
		}
		if err := config.SetValue(path, u.key, u.value); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't update "+u.key+" in "+path,
				"Fix the file by hand, or run 'connmon init --force' to start over")
		}
		changed++
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	if changed == 0 {
		fmt.Fprintf(out, "%s %s already exists; nothing to change\n", ui.MutedStyle().Render(ui.SymbolPending), path)
		return nil
	}
	fmt.Fprintf(out, "%s Updated %d value(s) in %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), changed, path)
	return nil
}

func promptInit(opts *InitOptions, exists bool) error {
	if exists && !opts.Force {
		overwrite := false
		confirm := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("'%s' already exists. Replace it with defaults?", config.ConfigFileName)).
				Description("Choose No to update only the values you enter next.").
				Value(&overwrite),
		))
		if err := confirm.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Run with --non-interactive and flags instead")
		}
		opts.Force = overwrite
	}

	if opts.Transport == "" {
		opts.Transport = transport.KindMock
	}
	if opts.Region == "" {
		opts.Region = "demo"
	}

	var hostSuggestions []string
	if hosts, err := sshutil.ListHosts(""); err == nil {
		for _, h := range hosts {
			hostSuggestions = append(hostSuggestions, h.Alias)
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Transport").
				Description("How connmon talks to the monitored service").
				Options(
					huh.NewOption("mock (simulated, no network)", transport.KindMock),
					huh.NewOption("socketio (real WebSocket session)", transport.KindSocketIO),
					huh.NewOption("ssh (host reachability)", transport.KindSSH),
				).
				Value(&opts.Transport),
			huh.NewSelect[string]().
				Title("Region").
				Options(
					huh.NewOption("demo", "demo"),
					huh.NewOption("live", "live"),
				).
				Value(&opts.Region),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Session id").
				Description("Sent as the auth token when connecting").
				EchoMode(huh.EchoModePassword).
				Value(&opts.SSID).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("session id is required for socketio")
					}
					return nil
				}),
		).WithHideFunc(func() bool { return opts.Transport != transport.KindSocketIO }),
		huh.NewGroup(
			huh.NewInput().
				Title("SSH host").
				Description("An alias from ~/.ssh/config, user@host, or host:port").
				Suggestions(hostSuggestions).
				Value(&opts.SSHHost).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("SSH host is required")
					}
					return nil
				}),
		).WithHideFunc(func() bool { return opts.Transport != transport.KindSSH }),
	)

	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Run with --non-interactive and flags instead")
	}
	return nil
}
