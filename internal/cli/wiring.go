package cli

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rileyhilliard/connmon/internal/config"
	"github.com/rileyhilliard/connmon/internal/errors"
	"github.com/rileyhilliard/connmon/internal/exporter"
	"github.com/rileyhilliard/connmon/internal/logger"
	"github.com/rileyhilliard/connmon/internal/monitor"
	"github.com/rileyhilliard/connmon/internal/sysmetrics"
	"github.com/rileyhilliard/connmon/internal/transport"
)

// Overrides carries command flags that take precedence over the config
// file. Zero values leave the config untouched.
type Overrides struct {
	Interval  time.Duration
	Transport string
	Region    string
	// Real selects the Socket.IO transport, like POCKET_USE_REAL did.
	Real bool
}

// Apply writes the overrides into cfg.
func (o Overrides) Apply(cfg *config.Config) {
	if o.Interval > 0 {
		cfg.Monitor.Interval = o.Interval
	}
	if o.Transport != "" {
		cfg.Transport.Kind = strings.ToLower(o.Transport)
	}
	if o.Real {
		cfg.Transport.Kind = transport.KindSocketIO
	}
	if o.Region != "" {
		cfg.Session.Region = o.Region
	}
}

// loadConfig finds and loads the config, applies overrides and validates
// the result.
func loadConfig(explicit string, ov Overrides) (*config.Config, error) {
	cfg, path, err := config.LoadOrDefault(explicit)
	if err != nil {
		return nil, err
	}
	ov.Apply(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if path != "" {
		logger.Default().Debug("loaded config from %s", path)
	}
	return cfg, nil
}

// factoryOptions maps the config file onto transport settings.
func factoryOptions(cfg *config.Config, log logger.Logger) transport.FactoryOptions {
	return transport.FactoryOptions{
		Kind: cfg.Transport.Kind,
		Mock: transport.MockConfig{
			ConnectDelay: cfg.Mock.ConnectDelay,
			SendDelay:    cfg.Mock.SendDelay,
			FailConnect:  cfg.Mock.FailConnect,
		},
		SocketIO: transport.SocketIOConfig{
			URLs:              cfg.SocketIO.URLs,
			Origin:            cfg.SocketIO.Origin,
			UserAgent:         cfg.SocketIO.UserAgent,
			HandshakeTimeout:  cfg.SocketIO.HandshakeTimeout,
			ReconnectAttempts: cfg.SocketIO.ReconnectAttempts,
			ReconnectDelay:    cfg.SocketIO.ReconnectDelay,
			PingInterval:      cfg.SocketIO.PingInterval,
			PingTimeout:       cfg.SocketIO.PingTimeout,
		},
		SSH: transport.SSHConfig{
			Host:            cfg.SSH.Host,
			Timeout:         cfg.SSH.Timeout,
			ProbeCommand:    cfg.SSH.ProbeCommand,
			InsecureHostKey: cfg.SSH.InsecureHostKey,
		},
		Logger: log,
	}
}

// monitorOptions maps the config file onto monitor settings. The factory
// and session are supplied by the caller.
func monitorOptions(cfg *config.Config, log logger.Logger) monitor.Options {
	h := cfg.Monitor.History
	return monitor.Options{
		Interval:    cfg.Monitor.Interval,
		PingPayload: cfg.Monitor.PingPayload,
		Thresholds: monitor.AlertThresholds{
			ErrorRate:    cfg.Alerts.ErrorRate,
			SlowResponse: cfg.Alerts.SlowResponse.Seconds(),
		},
		Limits: monitor.Limits{
			ConnectionMetrics: h.ConnectionMetrics,
			Snapshots:         h.Snapshots,
			Errors:            h.Errors,
			ResponseSamples:   h.ResponseSamples,
			PingSamples:       h.PingSamples,
		},
		System: sysmetrics.New(),
		Logger: log,
	}
}

// buildMonitor creates an idle monitor for cfg with a fresh session.
func buildMonitor(cfg *config.Config, log logger.Logger) (*monitor.Monitor, error) {
	region, err := transport.ParseRegion(cfg.Session.Region)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid session region: "+cfg.Session.Region,
			"Use 'demo' or 'live'")
	}

	factory, err := transport.NewFactory(factoryOptions(cfg, log))
	if err != nil {
		return nil, err
	}

	opts := monitorOptions(cfg, log)
	opts.Factory = factory
	opts.Session = transport.NewSession(cfg.Session.SSID, region)
	opts.Session.Persistent = cfg.Session.Persistent
	return monitor.New(opts), nil
}

// newExporter returns a Prometheus exporter labelled with the monitor's
// session and subscribed to its events.
func newExporter(mon *monitor.Monitor) *exporter.Exporter {
	s := mon.Session()
	e := exporter.New(prometheus.Labels{
		"session": s.ID,
		"region":  string(s.Region),
	})
	e.Attach(mon)
	return e
}
