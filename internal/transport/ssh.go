package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/connmon/internal/events"
	"github.com/rileyhilliard/connmon/internal/logger"
	"github.com/rileyhilliard/connmon/pkg/sshutil"
)

// SSHConfig tunes the SSH reachability client.
type SSHConfig struct {
	Host            string
	Timeout         time.Duration
	ProbeCommand    string
	InsecureHostKey bool
}

// DefaultSSHConfig probes with `uptime`.
func DefaultSSHConfig() SSHConfig {
	return SSHConfig{
		Timeout:      10 * time.Second,
		ProbeCommand: "uptime",
	}
}

// SSHClient treats an SSH host as the monitored service. The health probe
// runs ProbeCommand and the keepalive probe is an OpenSSH global request,
// so the monitor's ping measures one protocol round trip.
type SSHClient struct {
	session   Session
	cfg       SSHConfig
	dial      sshutil.Dialer
	log       logger.Logger
	callbacks *events.Dispatcher[EventKind, Event]

	connected atomic.Bool
	mu        sync.Mutex
	conn      sshutil.Conn
}

// NewSSHClient creates a client. A nil dial uses sshutil.Dial.
func NewSSHClient(session Session, cfg SSHConfig, dial sshutil.Dialer, log logger.Logger) *SSHClient {
	if dial == nil {
		dial = sshutil.Dial
	}
	if cfg.ProbeCommand == "" {
		cfg.ProbeCommand = DefaultSSHConfig().ProbeCommand
	}
	log = logger.OrDefault(log)
	return &SSHClient{
		session:   session,
		cfg:       cfg,
		dial:      dial,
		log:       log,
		callbacks: events.NewDispatcher[EventKind, Event]("ssh", log),
	}
}

// Connect dials the host. Unreachable hosts and refused handshakes are a
// clean false; only cancellation is returned as an error.
func (c *SSHClient) Connect(ctx context.Context) (bool, error) {
	conn, err := c.dial(ctx, c.cfg.Host, sshutil.DialOptions{
		Timeout:         c.cfg.Timeout,
		InsecureHostKey: c.cfg.InsecureHostKey,
	})
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		c.log.Debug("ssh: connect to %s failed: %v", c.cfg.Host, err)
		if strings.Contains(err.Error(), "unable to authenticate") || strings.Contains(err.Error(), "auth methods") {
			c.emit(ctx, EventAuthError, c.cfg.Host)
		}
		return false, nil
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
	c.emit(ctx, EventConnected, conn.Address())
	return true, nil
}

func (c *SSHClient) Disconnect(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	if c.connected.Swap(false) {
		c.emit(ctx, EventDisconnected, c.cfg.Host)
	}
}

// GetBalance runs the probe command. A zero exit returns the trimmed output
// and the round trip; a non-zero exit returns nil, which the monitor counts
// as unhealthy. A broken session marks the client disconnected.
func (c *SSHClient) GetBalance(ctx context.Context) (Record, error) {
	conn := c.current()
	if conn == nil {
		return nil, nil
	}

	start := time.Now()
	res, err := conn.Run(ctx, c.cfg.ProbeCommand)
	if err != nil {
		if ctx.Err() == nil {
			c.drop(ctx, err)
		}
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, nil
	}
	return Record{
		"host":     conn.Address(),
		"output":   strings.TrimSpace(string(res.Stdout)),
		"exit":     res.ExitCode,
		"duration": time.Since(start).Seconds(),
	}, nil
}

// SendMessage ignores payload and sends a keepalive request. A failed
// keepalive drops the connection and is returned.
func (c *SSHClient) SendMessage(ctx context.Context, payload string) (bool, error) {
	conn := c.current()
	if conn == nil {
		return false, nil
	}
	if err := conn.KeepAlive(ctx); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		c.drop(ctx, err)
		return false, fmt.Errorf("keepalive to %s: %w", c.cfg.Host, err)
	}
	return true, nil
}

func (c *SSHClient) IsConnected() bool {
	return c.connected.Load()
}

func (c *SSHClient) AddEventCallback(kind EventKind, h Handler) {
	c.callbacks.Register(kind, h)
}

func (c *SSHClient) current() sshutil.Conn {
	if !c.connected.Load() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// drop closes a connection that failed mid-probe and, for persistent
// sessions, redials once.
func (c *SSHClient) drop(ctx context.Context, cause error) {
	if !c.connected.Swap(false) {
		return
	}
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	c.log.Warn("ssh: connection to %s lost: %v", c.cfg.Host, cause)
	c.emit(ctx, EventDisconnected, cause.Error())

	if !c.session.Persistent {
		return
	}
	conn, err := c.dial(ctx, c.cfg.Host, sshutil.DialOptions{
		Timeout:         c.cfg.Timeout,
		InsecureHostKey: c.cfg.InsecureHostKey,
	})
	if err != nil {
		c.log.Debug("ssh: redial failed: %v", err)
		return
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
	c.emit(ctx, EventReconnected, conn.Address())
}

func (c *SSHClient) emit(ctx context.Context, kind EventKind, detail string) {
	c.callbacks.Emit(ctx, kind, Event{Kind: kind, Time: time.Now(), Detail: detail})
}
