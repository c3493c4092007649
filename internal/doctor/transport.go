package doctor

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/rileyhilliard/connmon/internal/errors"
	"github.com/rileyhilliard/connmon/pkg/sshutil"
)

// DefaultTimeout bounds each network probe.
const DefaultTimeout = 5 * time.Second

// DialFunc opens a TCP connection. net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// SessionCheck verifies that a session id is configured for transports
// that need one.
type SessionCheck struct {
	SSID string
}

func (c *SessionCheck) Name() string     { return "session_id" }
func (c *SessionCheck) Category() string { return "TRANSPORT" }

func (c *SessionCheck) Run(context.Context) CheckResult {
	if strings.TrimSpace(c.SSID) == "" {
		return CheckResult{
			Status:     StatusFail,
			Message:    "No session id configured",
			Suggestion: "Set session.ssid, or export CONNMON_SESSION_SSID",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("Session id set (%d characters)", len(c.SSID)),
	}
}

// EndpointCheck opens a TCP connection to each WebSocket endpoint. It
// passes when any endpoint answers, since the client falls through the
// list in order.
type EndpointCheck struct {
	URLs    []string
	Timeout time.Duration
	// Dial overrides net.Dialer.DialContext.
	Dial DialFunc
}

func (c *EndpointCheck) Name() string     { return "endpoints" }
func (c *EndpointCheck) Category() string { return "TRANSPORT" }

func (c *EndpointCheck) Run(ctx context.Context) CheckResult {
	if len(c.URLs) == 0 {
		return CheckResult{
			Status:     StatusFail,
			Message:    "No endpoints configured",
			Suggestion: "Set socketio.urls, or leave it empty to use the region defaults",
		}
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dial := c.Dial
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}

	var failed []string
	for _, raw := range c.URLs {
		addr, err := endpointAddress(raw)
		if err == nil {
			dctx, cancel := context.WithTimeout(ctx, timeout)
			var conn net.Conn
			conn, err = dial(dctx, "tcp", addr)
			cancel()
			if err == nil {
				conn.Close()
				msg := "Reachable: " + addr
				if len(failed) > 0 {
					msg += fmt.Sprintf(" (%d earlier endpoint(s) unreachable)", len(failed))
				}
				return CheckResult{Status: StatusPass, Message: msg}
			}
		}
		failed = append(failed, fmt.Sprintf("%s: %v", raw, err))
	}

	return CheckResult{
		Status:     StatusFail,
		Message:    "No endpoint reachable: " + strings.Join(failed, "; "),
		Suggestion: "Check your network and proxy settings, or try the other region",
	}
}

// endpointAddress turns a ws:// or wss:// URL into host:port.
func endpointAddress(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("no host in %q", raw)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "wss", "https":
			port = "443"
		case "ws", "http":
			port = "80"
		default:
			return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// SSHCheck connects to an SSH host and runs the probe command the ssh
// transport will use as its health check.
type SSHCheck struct {
	Host         string
	ProbeCommand string
	Options      sshutil.DialOptions
	// Dial overrides sshutil.Dial.
	Dial sshutil.Dialer
}

func (c *SSHCheck) Name() string     { return "ssh_probe" }
func (c *SSHCheck) Category() string { return "TRANSPORT" }

func (c *SSHCheck) Run(ctx context.Context) CheckResult {
	if strings.TrimSpace(c.Host) == "" {
		return CheckResult{
			Status:     StatusFail,
			Message:    "No SSH host configured",
			Suggestion: "Set ssh.host to an alias from ~/.ssh/config or user@host",
		}
	}
	dial := c.Dial
	if dial == nil {
		dial = sshutil.Dial
	}

	conn, err := dial(ctx, c.Host, c.Options)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("Can't connect to %s: %s", c.Host, errors.Summarize(err)),
			Suggestion: "Try 'ssh " + c.Host + "' by hand to see the full error",
		}
	}
	defer conn.Close()

	if c.ProbeCommand == "" {
		return CheckResult{Status: StatusPass, Message: "Connected to " + conn.Address()}
	}
	res, err := conn.Run(ctx, c.ProbeCommand)
	if err != nil || res.ExitCode != 0 {
		detail := strings.TrimSpace(string(res.Stderr))
		if err != nil {
			detail = errors.Summarize(err)
		}
		return CheckResult{
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Connected to %s, but '%s' failed: %s", conn.Address(), c.ProbeCommand, detail),
			Suggestion: "Every health check will count as an error; set ssh.probe_command to something that exits 0",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("Connected to %s, '%s' succeeded", conn.Address(), c.ProbeCommand),
	}
}
