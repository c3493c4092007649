package sshutil

import "context"

// Conn is an established SSH connection used as a reachability probe.
// Both the real Client and the fake in sshutil/testing satisfy it.
type Conn interface {
	// Run executes cmd in a new session. A non-zero exit code with a nil
	// error means the command ran and failed.
	Run(ctx context.Context, cmd string) (Result, error)

	// KeepAlive sends a keepalive@openssh.com global request. It is the
	// cheapest round trip that proves the transport is still alive.
	KeepAlive(ctx context.Context) error

	// Address returns the resolved host:port.
	Address() string

	Close() error
}

// Result is the outcome of a remote command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Dialer opens connections. Production code uses Dial; tests substitute a fake.
type Dialer func(ctx context.Context, host string, opts DialOptions) (Conn, error)
