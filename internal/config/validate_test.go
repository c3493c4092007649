package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rileyhilliard/connmon/internal/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults"},
		{name: "future version", mutate: func(c *Config) { c.Version = 99 }, wantErr: "from the future"},
		{name: "bad region", mutate: func(c *Config) { c.Session.Region = "mars" }, wantErr: "session.region"},
		{name: "region case-insensitive", mutate: func(c *Config) { c.Session.Region = "LIVE" }},
		{name: "bad kind", mutate: func(c *Config) { c.Transport.Kind = "smoke" }, wantErr: "transport.kind"},
		{name: "socketio without ssid", mutate: func(c *Config) { c.Transport.Kind = "socketio" }, wantErr: "session.ssid"},
		{
			name:   "socketio with ssid",
			mutate: func(c *Config) { c.Transport.Kind = "socketio"; c.Session.SSID = "x" },
		},
		{name: "ssh without host", mutate: func(c *Config) { c.Transport.Kind = "ssh" }, wantErr: "ssh.host"},
		{name: "ssh with host", mutate: func(c *Config) { c.Transport.Kind = "ssh"; c.SSH.Host = "box" }},
		{name: "negative mock delay", mutate: func(c *Config) { c.Mock.SendDelay = -1 }, wantErr: "mock delays"},
		{name: "http url", mutate: func(c *Config) { c.SocketIO.URLs = []string{"http://x"} }, wantErr: "socketio.urls[0]"},
		{name: "negative reconnects", mutate: func(c *Config) { c.SocketIO.ReconnectAttempts = -1 }, wantErr: "reconnect_attempts"},
		{name: "zero interval", mutate: func(c *Config) { c.Monitor.Interval = 0 }, wantErr: "monitor.interval"},
		{name: "zero history", mutate: func(c *Config) { c.Monitor.History.Errors = 0 }, wantErr: "monitor.history.errors"},
		{name: "error rate above one", mutate: func(c *Config) { c.Alerts.ErrorRate = 10 }, wantErr: "alerts.error_rate"},
		{name: "zero slow response", mutate: func(c *Config) { c.Alerts.SlowResponse = 0 }, wantErr: "alerts.slow_response"},
		{name: "empty addr", mutate: func(c *Config) { c.Server.Addr = " " }, wantErr: "server.addr"},
		{name: "zero push interval", mutate: func(c *Config) { c.Server.PushInterval = -time.Second }, wantErr: "push_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	assert.True(t, errors.IsCode(Validate(nil), errors.ErrConfig))
}
