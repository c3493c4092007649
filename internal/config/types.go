package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
const CurrentConfigVersion = 1

// Config represents the complete .connmon.yaml configuration file.
type Config struct {
	Version   int             `yaml:"version" mapstructure:"version"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Transport TransportConfig `yaml:"transport" mapstructure:"transport"`
	SocketIO  SocketIOConfig  `yaml:"socketio" mapstructure:"socketio"`
	SSH       SSHConfig       `yaml:"ssh" mapstructure:"ssh"`
	Mock      MockConfig      `yaml:"mock" mapstructure:"mock"`
	Monitor   MonitorConfig   `yaml:"monitor" mapstructure:"monitor"`
	Alerts    AlertsConfig    `yaml:"alerts" mapstructure:"alerts"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
}

// SessionConfig identifies the monitored account.
type SessionConfig struct {
	// SSID is the session token sent in the Socket.IO connect packet.
	SSID string `yaml:"ssid" mapstructure:"ssid"`

	// Region: "demo" or "live".
	Region string `yaml:"region" mapstructure:"region"`

	// Persistent enables transport-level reconnects.
	Persistent bool `yaml:"persistent" mapstructure:"persistent"`
}

// TransportConfig picks the transport implementation.
type TransportConfig struct {
	// Kind: "mock", "socketio", or "ssh".
	Kind string `yaml:"kind" mapstructure:"kind"`
}

// SocketIOConfig tunes the WebSocket client.
type SocketIOConfig struct {
	// URLs overrides the region's endpoint list.
	URLs              []string      `yaml:"urls,omitempty" mapstructure:"urls"`
	Origin            string        `yaml:"origin" mapstructure:"origin"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout" mapstructure:"handshake_timeout"`
	ReconnectAttempts int           `yaml:"reconnect_attempts" mapstructure:"reconnect_attempts"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay" mapstructure:"reconnect_delay"`
	PingInterval      time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PingTimeout       time.Duration `yaml:"ping_timeout" mapstructure:"ping_timeout"`
}

// SSHConfig tunes the SSH reachability transport.
type SSHConfig struct {
	// Host is an ssh_config alias, hostname, user@hostname, or hostname:port.
	Host         string        `yaml:"host" mapstructure:"host"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	ProbeCommand string        `yaml:"probe_command" mapstructure:"probe_command"`

	// InsecureHostKey skips known_hosts verification.
	InsecureHostKey bool `yaml:"insecure_host_key" mapstructure:"insecure_host_key"`
}

// MockConfig tunes the simulated transport.
type MockConfig struct {
	ConnectDelay time.Duration `yaml:"connect_delay" mapstructure:"connect_delay"`
	SendDelay    time.Duration `yaml:"send_delay" mapstructure:"send_delay"`
	FailConnect  bool          `yaml:"fail_connect" mapstructure:"fail_connect"`
}

// MonitorConfig controls the monitoring loop.
type MonitorConfig struct {
	Interval    time.Duration `yaml:"interval" mapstructure:"interval"`
	PingPayload string        `yaml:"ping_payload" mapstructure:"ping_payload"`
	History     HistoryConfig `yaml:"history" mapstructure:"history"`
}

// HistoryConfig bounds the in-memory history.
type HistoryConfig struct {
	ConnectionMetrics int `yaml:"connection_metrics" mapstructure:"connection_metrics"`
	Snapshots         int `yaml:"snapshots" mapstructure:"snapshots"`
	Errors            int `yaml:"errors" mapstructure:"errors"`
	ResponseSamples   int `yaml:"response_samples" mapstructure:"response_samples"`
	PingSamples       int `yaml:"ping_samples" mapstructure:"ping_samples"`
}

// AlertsConfig holds alert thresholds.
type AlertsConfig struct {
	// ErrorRate is a fraction; alerts fire above it.
	ErrorRate float64 `yaml:"error_rate" mapstructure:"error_rate"`

	// SlowResponse is compared against the mean health-check time.
	SlowResponse time.Duration `yaml:"slow_response" mapstructure:"slow_response"`
}

// ServerConfig controls `connmon serve`.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`

	// AdminToken, when set, is required as a bearer token on start/stop.
	AdminToken string `yaml:"admin_token,omitempty" mapstructure:"admin_token"`

	// PushInterval is how often stats are pushed to WebSocket clients.
	PushInterval time.Duration `yaml:"push_interval" mapstructure:"push_interval"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Session: SessionConfig{
			Region: "demo",
		},
		Transport: TransportConfig{
			Kind: "mock",
		},
		SocketIO: SocketIOConfig{
			Origin:            "https://pocketoption.com",
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			HandshakeTimeout:  10 * time.Second,
			ReconnectAttempts: 5,
			ReconnectDelay:    5 * time.Second,
			PingInterval:      20 * time.Second,
			PingTimeout:       10 * time.Second,
		},
		SSH: SSHConfig{
			Timeout:      10 * time.Second,
			ProbeCommand: "uptime",
		},
		Mock: MockConfig{
			ConnectDelay: time.Second,
			SendDelay:    10 * time.Millisecond,
		},
		Monitor: MonitorConfig{
			Interval:    5 * time.Second,
			PingPayload: `42["ps"]`,
			History: HistoryConfig{
				ConnectionMetrics: 1000,
				Snapshots:         500,
				Errors:            200,
				ResponseSamples:   100,
				PingSamples:       100,
			},
		},
		Alerts: AlertsConfig{
			ErrorRate:    0.10,
			SlowResponse: 5 * time.Second,
		},
		Server: ServerConfig{
			Addr:         ":8000",
			PushInterval: time.Second,
		},
	}
}
