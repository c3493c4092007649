package doctor

import (
	"strings"
	"time"

	"github.com/rileyhilliard/connmon/internal/config"
	"github.com/rileyhilliard/connmon/internal/monitor"
	"github.com/rileyhilliard/connmon/internal/transport"
	"github.com/rileyhilliard/connmon/pkg/sshutil"
)

// Options describes what to diagnose.
type Options struct {
	Config     *config.Config
	ConfigPath string
	LoadErr    error

	// System defaults to monitor.NoopSystemMetrics.
	System  monitor.SystemMetricsProvider
	Timeout time.Duration
	Dial    DialFunc
	SSHDial sshutil.Dialer
}

// Checks returns the checks that apply to opts.Config. Transport checks
// are only added for a config that loaded.
func Checks(opts Options) []Check {
	checks := []Check{
		&ConfigFileCheck{Path: opts.ConfigPath, LoadErr: opts.LoadErr},
	}
	cfg := opts.Config
	if cfg == nil {
		return checks
	}
	checks = append(checks, &ConfigValidCheck{Config: cfg})

	switch strings.ToLower(cfg.Transport.Kind) {
	case transport.KindSocketIO:
		urls := cfg.SocketIO.URLs
		if len(urls) == 0 {
			region, err := transport.ParseRegion(cfg.Session.Region)
			if err == nil {
				urls = transport.RegionURLs(region)
			}
		}
		checks = append(checks,
			&SessionCheck{SSID: cfg.Session.SSID},
			&EndpointCheck{URLs: urls, Timeout: opts.Timeout, Dial: opts.Dial},
		)
	case transport.KindSSH:
		timeout := cfg.SSH.Timeout
		if opts.Timeout > 0 {
			timeout = opts.Timeout
		}
		checks = append(checks, &SSHCheck{
			Host:         cfg.SSH.Host,
			ProbeCommand: cfg.SSH.ProbeCommand,
			Options:      sshutil.DialOptions{Timeout: timeout, InsecureHostKey: cfg.SSH.InsecureHostKey},
			Dial:         opts.SSHDial,
		})
	}

	system := opts.System
	if system == nil {
		system = monitor.NoopSystemMetrics{}
	}
	return append(checks, &SystemMetricsCheck{Provider: system})
}
