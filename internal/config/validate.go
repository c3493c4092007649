package config

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/connmon/internal/errors"
)

// Transport kinds accepted in transport.kind.
var validKinds = map[string]bool{"mock": true, "socketio": true, "ssh": true}

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but connmon only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade connmon or regenerate the file with 'connmon init --force'.")
	}

	checks := []struct {
		section string
		fn      func(*Config) error
	}{
		{"session", validateSession},
		{"transport", validateTransport},
		{"socketio", func(c *Config) error { return validateSocketIO(c.SocketIO) }},
		{"monitor", func(c *Config) error { return validateMonitor(c.Monitor) }},
		{"alerts", func(c *Config) error { return validateAlerts(c.Alerts) }},
		{"server", func(c *Config) error { return validateServer(c.Server) }},
	}
	for _, check := range checks {
		if err := check.fn(cfg); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, err.Error(),
				fmt.Sprintf("Check the '%s' section in your %s.", check.section, ConfigFileName))
		}
	}
	return nil
}

func validateSession(cfg *Config) error {
	switch strings.ToLower(cfg.Session.Region) {
	case "", "demo", "live":
	default:
		return fmt.Errorf("session.region '%s' isn't valid - use 'demo' or 'live'", cfg.Session.Region)
	}
	return nil
}

func validateTransport(cfg *Config) error {
	kind := strings.ToLower(cfg.Transport.Kind)
	if !validKinds[kind] {
		return fmt.Errorf("transport.kind '%s' isn't valid - use 'mock', 'socketio', or 'ssh'", cfg.Transport.Kind)
	}
	if kind == "socketio" && strings.TrimSpace(cfg.Session.SSID) == "" {
		return fmt.Errorf("the socketio transport needs session.ssid (or %s_SESSION_SSID)", EnvPrefix)
	}
	if kind == "ssh" && strings.TrimSpace(cfg.SSH.Host) == "" {
		return fmt.Errorf("the ssh transport needs ssh.host - an ssh_config alias or user@host")
	}
	if cfg.SSH.Timeout < 0 {
		return fmt.Errorf("ssh.timeout can't be negative")
	}
	if cfg.Mock.ConnectDelay < 0 || cfg.Mock.SendDelay < 0 {
		return fmt.Errorf("mock delays can't be negative")
	}
	return nil
}

func validateSocketIO(s SocketIOConfig) error {
	for i, u := range s.URLs {
		if !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
			return fmt.Errorf("socketio.urls[%d] '%s' needs a ws:// or wss:// scheme", i, u)
		}
	}
	if s.ReconnectAttempts < 0 {
		return fmt.Errorf("socketio.reconnect_attempts can't be negative")
	}
	if s.ReconnectDelay < 0 || s.HandshakeTimeout < 0 {
		return fmt.Errorf("socketio timeouts can't be negative")
	}
	return nil
}

func validateMonitor(m MonitorConfig) error {
	if m.Interval <= 0 {
		return fmt.Errorf("monitor.interval needs to be positive (got %v) - try something like '5s'", m.Interval)
	}
	h := m.History
	for name, n := range map[string]int{
		"connection_metrics": h.ConnectionMetrics,
		"snapshots":          h.Snapshots,
		"errors":             h.Errors,
		"response_samples":   h.ResponseSamples,
		"ping_samples":       h.PingSamples,
	} {
		if n <= 0 {
			return fmt.Errorf("monitor.history.%s needs to be at least 1 (got %d)", name, n)
		}
	}
	return nil
}

func validateAlerts(a AlertsConfig) error {
	if a.ErrorRate < 0 || a.ErrorRate > 1 {
		return fmt.Errorf("alerts.error_rate is a fraction and needs to be 0-1 (got %g)", a.ErrorRate)
	}
	if a.SlowResponse <= 0 {
		return fmt.Errorf("alerts.slow_response needs to be positive (got %v)", a.SlowResponse)
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if strings.TrimSpace(s.Addr) == "" {
		return fmt.Errorf("server.addr can't be empty - try ':8000'")
	}
	if s.PushInterval <= 0 {
		return fmt.Errorf("server.push_interval needs to be positive (got %v)", s.PushInterval)
	}
	return nil
}
