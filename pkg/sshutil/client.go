// Package sshutil dials SSH hosts for reachability probing. Host aliases
// are resolved through ~/.ssh/config and authentication uses the agent or
// the default key files.
package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/rileyhilliard/connmon/internal/errors"
)

// DialOptions controls how a host is reached.
type DialOptions struct {
	Timeout time.Duration
	// InsecureHostKey skips known_hosts verification.
	InsecureHostKey bool
	// ConfigPath overrides ~/.ssh/config. Empty means the default.
	ConfigPath string
}

// Client wraps an SSH connection with the host it was opened for.
type Client struct {
	client  *ssh.Client
	host    string
	address string
}

var _ Conn = (*Client)(nil)

// Dial connects to host, which may be an ssh_config alias, a hostname,
// user@hostname, or hostname:port.
func Dial(ctx context.Context, host string, opts DialOptions) (Conn, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	settings := resolveSettings(host, opts.ConfigPath)

	cfg, err := clientConfig(settings, opts)
	if err != nil {
		var ce *errors.Error
		if stderrors.As(err, &ce) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("Couldn't set up SSH for '%s'", host),
			"Check your keys are loaded: ssh-add -l")
	}

	address := settings.address()
	d := net.Dialer{Timeout: opts.Timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("Can't reach '%s' at %s", host, address),
			dialSuggestion(err))
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(opts.Timeout))
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, cfg)
	if err != nil {
		conn.Close()
		var mismatch *HostKeyMismatchError
		if stderrors.As(err, &mismatch) {
			return nil, errors.New(errors.ErrConnect, mismatch.Error(), mismatch.Suggestion())
		}
		return nil, errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", host),
			handshakeSuggestion(err, settings.encryptedKeys))
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		client:  ssh.NewClient(sshConn, chans, reqs),
		host:    host,
		address: address,
	}, nil
}

// Run executes cmd and collects its output. Cancelling ctx closes the
// session, which makes the remote side see a hangup.
func (c *Client) Run(ctx context.Context, cmd string) (Result, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return Result{ExitCode: -1}, errors.WrapWithCode(err, errors.ErrTransport,
			"Failed to open SSH session",
			"The connection may have dropped. It will be re-established on the next connect.")
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		session.Close()
		return Result{ExitCode: -1}, ctx.Err()
	case err = <-done:
	}

	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *ssh.ExitError
		if stderrors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitStatus()
			return res, nil
		}
		res.ExitCode = -1
		return res, errors.WrapWithCode(err, errors.ErrTransport,
			fmt.Sprintf("Failed to run '%s'", cmd),
			"Check the command exists on the remote host.")
	}
	return res, nil
}

func (c *Client) KeepAlive(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		_, _, err := c.client.SendRequest("keepalive@openssh.com", true, nil)
		done <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (c *Client) Address() string {
	return c.address
}

// Host returns the alias or hostname the client was dialed with.
func (c *Client) Host() string {
	return c.host
}

func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func dialSuggestion(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "Is SSH running on that box? Try: ssh <host>"
	case strings.Contains(msg, "no route to host"), strings.Contains(msg, "network is unreachable"):
		return "Can't route to the host. Check your network connection."
	case strings.Contains(msg, "timeout"):
		return "Connection timed out. Host might be offline or behind a firewall."
	}
	return "Make sure the host is reachable: ssh <host>"
}

func handshakeSuggestion(err error, encryptedKeys []string) string {
	msg := err.Error()
	if strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "no supported methods") {
		if len(encryptedKeys) > 0 {
			return addKeysHint(encryptedKeys)
		}
		return "Auth failed. Check your keys are loaded: ssh-add -l"
	}
	if strings.Contains(msg, "host key") {
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}
