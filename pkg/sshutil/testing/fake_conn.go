// Package testing provides an in-memory sshutil.Conn for tests.
package testing

import (
	"context"
	"errors"
	"regexp"
	"sync"

	"github.com/rileyhilliard/connmon/pkg/sshutil"
)

// ErrClosed is returned by a FakeConn after Close.
var ErrClosed = errors.New("connection closed")

// FakeConn answers commands from canned responses keyed by regex pattern.
// Unmatched commands exit 127.
type FakeConn struct {
	mu        sync.Mutex
	address   string
	responses map[string]sshutil.Result
	runErr    error
	aliveErr  error
	closed    bool
	commands  []string
	keepAlive int
}

var _ sshutil.Conn = (*FakeConn)(nil)

// NewFakeConn creates a fake connected to address.
func NewFakeConn(address string) *FakeConn {
	return &FakeConn{address: address, responses: map[string]sshutil.Result{}}
}

// Respond registers res for commands matching pattern.
func (f *FakeConn) Respond(pattern string, res sshutil.Result) *FakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[pattern] = res
	return f
}

// FailRun makes every Run return err.
func (f *FakeConn) FailRun(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runErr = err
}

// FailKeepAlive makes KeepAlive return err.
func (f *FakeConn) FailKeepAlive(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aliveErr = err
}

func (f *FakeConn) Run(ctx context.Context, cmd string) (sshutil.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return sshutil.Result{ExitCode: -1}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return sshutil.Result{ExitCode: -1}, err
	}
	f.commands = append(f.commands, cmd)
	if f.runErr != nil {
		return sshutil.Result{ExitCode: -1}, f.runErr
	}
	if res, ok := f.responses[cmd]; ok {
		return res, nil
	}
	for pattern, res := range f.responses {
		if ok, _ := regexp.MatchString(pattern, cmd); ok {
			return res, nil
		}
	}
	return sshutil.Result{Stderr: []byte("command not found"), ExitCode: 127}, nil
}

func (f *FakeConn) KeepAlive(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.keepAlive++
	return f.aliveErr
}

func (f *FakeConn) Address() string {
	return f.address
}

func (f *FakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakeConn) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Commands returns every command Run received.
func (f *FakeConn) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// KeepAlives returns how many keepalive requests were sent.
func (f *FakeConn) KeepAlives() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keepAlive
}

// Dialer returns an sshutil.Dialer that always yields conn, or err when set.
func Dialer(conn sshutil.Conn, err error) sshutil.Dialer {
	return func(ctx context.Context, host string, opts sshutil.DialOptions) (sshutil.Conn, error) {
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}
