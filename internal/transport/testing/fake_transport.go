// Package testing provides test doubles for the transport package.
package testing

import (
	"context"
	"sync"
	"time"

	"github.com/rileyhilliard/connmon/internal/events"
	"github.com/rileyhilliard/connmon/internal/logger"
	"github.com/rileyhilliard/connmon/internal/transport"
)

// FakeTransport is a scriptable transport. Zero-value fields mean success:
// Connect succeeds, GetBalance returns Balance, SendMessage returns true.
type FakeTransport struct {
	mu sync.Mutex

	ConnectResult bool
	ConnectErr    error
	// ConnectDelay makes Connect wait, returning early if ctx ends.
	ConnectDelay time.Duration
	Balance       transport.Record
	BalanceErr    error
	BalanceDelay  time.Duration
	SendErr       error
	// PanicOnBalance makes GetBalance panic, simulating a broken transport.
	PanicOnBalance bool
	// StayDisconnected keeps IsConnected false even after a successful Connect.
	StayDisconnected bool

	connected   bool
	callbacks   *events.Dispatcher[transport.EventKind, transport.Event]
	Sent        []string
	Connects    int
	Disconnects int
	Balances    int
}

// NewFakeTransport returns a transport whose Connect succeeds.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		ConnectResult: true,
		Balance:       transport.Record{"balance": 1.0},
		callbacks:     events.NewDispatcher[transport.EventKind, transport.Event]("fake", logger.Noop()),
	}
}

// Factory returns a transport.Factory that always yields f.
func (f *FakeTransport) Factory() transport.Factory {
	return func(transport.Session) (transport.Transport, error) {
		return f, nil
	}
}

func (f *FakeTransport) Connect(ctx context.Context) (bool, error) {
	f.mu.Lock()
	f.Connects++
	delay := f.ConnectDelay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(delay):
		}
	}

	f.mu.Lock()
	ok, err := f.ConnectResult, f.ConnectErr
	if err == nil && ok && !f.StayDisconnected {
		f.connected = true
	}
	f.mu.Unlock()
	return ok && err == nil, err
}

func (f *FakeTransport) Disconnect(ctx context.Context) {
	f.mu.Lock()
	f.Disconnects++
	f.connected = false
	f.mu.Unlock()
}

func (f *FakeTransport) GetBalance(ctx context.Context) (transport.Record, error) {
	f.mu.Lock()
	f.Balances++
	delay, rec, err, boom := f.BalanceDelay, f.Balance, f.BalanceErr, f.PanicOnBalance
	f.mu.Unlock()

	if boom {
		panic("fake transport: balance probe exploded")
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return rec, err
}

func (f *FakeTransport) SendMessage(ctx context.Context, payload string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return false, f.SendErr
	}
	f.Sent = append(f.Sent, payload)
	return true, nil
}

func (f *FakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *FakeTransport) AddEventCallback(kind transport.EventKind, h transport.Handler) {
	f.callbacks.Register(kind, h)
}

// SetConnected flips the connectivity flag without raising events.
func (f *FakeTransport) SetConnected(on bool) {
	f.mu.Lock()
	f.connected = on
	f.mu.Unlock()
}

// Configure runs fn with the fake's lock held, for changing behaviour
// while a monitor is using it.
func (f *FakeTransport) Configure(fn func(f *FakeTransport)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// Fire raises a lifecycle event to registered callbacks.
func (f *FakeTransport) Fire(kind transport.EventKind, detail string) {
	f.callbacks.Emit(context.Background(), kind, transport.Event{Kind: kind, Time: time.Now(), Detail: detail})
}

// Counts returns call counters under the lock.
func (f *FakeTransport) Counts() (connects, disconnects, balances, sent int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connects, f.Disconnects, f.Balances, len(f.Sent)
}
