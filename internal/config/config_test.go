package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/connmon/internal/errors"
)

// clearEnv unsets every variable the loader reads so the host environment
// can't leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys(reflectConfigType(), "") {
		t.Setenv(envName(key), "")
		os.Unsetenv(envName(key))
	}
	for _, name := range []string{LegacySSIDEnv, LegacyUseRealEnv} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, "demo", cfg.Session.Region)
	assert.Equal(t, "mock", cfg.Transport.Kind)
	assert.Equal(t, 5*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, `42["ps"]`, cfg.Monitor.PingPayload)
	assert.Equal(t, 1000, cfg.Monitor.History.ConnectionMetrics)
	assert.Equal(t, 500, cfg.Monitor.History.Snapshots)
	assert.Equal(t, 200, cfg.Monitor.History.Errors)
	assert.Equal(t, 100, cfg.Monitor.History.ResponseSamples)
	assert.Equal(t, 100, cfg.Monitor.History.PingSamples)
	assert.Equal(t, 0.10, cfg.Alerts.ErrorRate)
	assert.Equal(t, 5*time.Second, cfg.Alerts.SlowResponse)
	assert.Equal(t, 5, cfg.SocketIO.ReconnectAttempts)
	assert.Equal(t, 5*time.Second, cfg.SocketIO.ReconnectDelay)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, time.Second, cfg.Mock.ConnectDelay)

	assert.NoError(t, Validate(cfg))
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ConfigFileName)
	content := `
version: 1
session:
  ssid: abc123
  region: live
  persistent: true
transport:
  kind: socketio
socketio:
  urls:
    - wss://example.test/socket.io/
  reconnect_delay: 2s
monitor:
  interval: 3s
  history:
    errors: 50
alerts:
  error_rate: 0.25
  slow_response: 1500ms
server:
  addr: 127.0.0.1:9000
  admin_token: s3cret
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "abc123", cfg.Session.SSID)
	assert.Equal(t, "live", cfg.Session.Region)
	assert.True(t, cfg.Session.Persistent)
	assert.Equal(t, "socketio", cfg.Transport.Kind)
	assert.Equal(t, []string{"wss://example.test/socket.io/"}, cfg.SocketIO.URLs)
	assert.Equal(t, 2*time.Second, cfg.SocketIO.ReconnectDelay)
	assert.Equal(t, 3*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 50, cfg.Monitor.History.Errors)
	assert.Equal(t, 0.25, cfg.Alerts.ErrorRate)
	assert.Equal(t, 1500*time.Millisecond, cfg.Alerts.SlowResponse)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "s3cret", cfg.Server.AdminToken)

	// Untouched keys keep their defaults.
	assert.Equal(t, 5, cfg.SocketIO.ReconnectAttempts)
	assert.Equal(t, 500, cfg.Monitor.History.Snapshots)
	assert.Equal(t, `42["ps"]`, cfg.Monitor.PingPayload)
	assert.Equal(t, time.Second, cfg.Server.PushInterval)

	assert.NoError(t, Validate(cfg))
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("monitor: [unclosed"), 0o644))
	_, err = Load(bad)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	wrongType := filepath.Join(t.TempDir(), "wrong.yaml")
	require.NoError(t, os.WriteFile(wrongType, []byte("monitor:\n  interval: soon\n"), 0o644))
	_, err = Load(wrongType)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONNMON_MONITOR_INTERVAL", "750ms")
	t.Setenv("CONNMON_ALERTS_ERROR_RATE", "0.5")
	t.Setenv("CONNMON_SSH_HOST", "box")
	t.Setenv("CONNMON_TRANSPORT_KIND", "ssh")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 750*time.Millisecond, cfg.Monitor.Interval)
	assert.Equal(t, 0.5, cfg.Alerts.ErrorRate)
	assert.Equal(t, "box", cfg.SSH.Host)
	assert.Equal(t, "ssh", cfg.Transport.Kind)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("session:\n  ssid: from-file\n"), 0o644))
	t.Setenv("CONNMON_SESSION_SSID", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Session.SSID)
}

func TestLegacyEnv(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		wantSSID string
		wantKind string
	}{
		{
			name:     "nothing set",
			wantKind: "mock",
		},
		{
			name:     "legacy ssid and use_real",
			env:      map[string]string{LegacySSIDEnv: "legacy", LegacyUseRealEnv: "true"},
			wantSSID: "legacy",
			wantKind: "socketio",
		},
		{
			name:     "use_real false",
			env:      map[string]string{LegacyUseRealEnv: "false"},
			wantKind: "mock",
		},
		{
			name:     "new names win",
			env:      map[string]string{LegacySSIDEnv: "legacy", "CONNMON_SESSION_SSID": "new", LegacyUseRealEnv: "true", "CONNMON_TRANSPORT_KIND": "mock"},
			wantSSID: "new",
			wantKind: "mock",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := FromEnv()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSSID, cfg.Session.SSID)
			assert.Equal(t, tt.wantKind, cfg.Transport.Kind)
		})
	}
}

func TestFind(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	work := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(work))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	path, err := Find("")
	require.NoError(t, err)
	assert.Empty(t, path)

	homeCfg := filepath.Join(home, ConfigFileName)
	require.NoError(t, os.WriteFile(homeCfg, []byte("version: 1\n"), 0o644))
	path, err = Find("")
	require.NoError(t, err)
	assert.Equal(t, homeCfg, path)

	globalCfg := GlobalConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(globalCfg), 0o755))
	require.NoError(t, os.WriteFile(globalCfg, []byte("version: 1\n"), 0o644))
	path, err = Find("")
	require.NoError(t, err)
	assert.Equal(t, globalCfg, path)

	localCfg := filepath.Join(work, ConfigFileName)
	require.NoError(t, os.WriteFile(localCfg, []byte("version: 1\n"), 0o644))
	path, err = Find("")
	require.NoError(t, err)
	assert.Equal(t, ConfigFileName, filepath.Base(path))
	assert.NotEqual(t, homeCfg, path)

	explicit := filepath.Join(t.TempDir(), "x.yaml")
	require.NoError(t, os.WriteFile(explicit, []byte("version: 1\n"), 0o644))
	path, err = Find(explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, path)

	_, err = Find(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoadOrDefault_NoFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, path, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfigKeys(t *testing.T) {
	keys := configKeys(reflectConfigType(), "")
	assert.Contains(t, keys, "session.ssid")
	assert.Contains(t, keys, "monitor.history.ping_samples")
	assert.Contains(t, keys, "server.admin_token")
	assert.NotContains(t, keys, "monitor.history")
}

func reflectConfigType() reflect.Type {
	return reflect.TypeOf(Config{})
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
