package transport

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/connmon/internal/events"
	"github.com/rileyhilliard/connmon/internal/logger"
)

// MockConfig tunes the simulated client.
type MockConfig struct {
	ConnectDelay time.Duration
	SendDelay    time.Duration
	FailConnect  bool
}

// DefaultMockConfig mirrors a slow handshake and a fast send.
func DefaultMockConfig() MockConfig {
	return MockConfig{
		ConnectDelay: time.Second,
		SendDelay:    10 * time.Millisecond,
	}
}

// MockClient simulates a remote service without any network I/O.
type MockClient struct {
	session   Session
	cfg       MockConfig
	connected atomic.Bool
	callbacks *events.Dispatcher[EventKind, Event]
}

// NewMockClient creates a simulated client for session.
func NewMockClient(session Session, cfg MockConfig, log logger.Logger) *MockClient {
	return &MockClient{
		session:   session,
		cfg:       cfg,
		callbacks: events.NewDispatcher[EventKind, Event]("mock", log),
	}
}

// Connect waits the configured delay and then succeeds unless FailConnect is set.
func (c *MockClient) Connect(ctx context.Context) (bool, error) {
	if err := sleep(ctx, c.cfg.ConnectDelay); err != nil {
		return false, err
	}
	if c.cfg.FailConnect {
		return false, nil
	}
	c.connected.Store(true)
	c.callbacks.Emit(ctx, EventConnected, Event{Kind: EventConnected, Time: time.Now(), Detail: c.session.SSID})
	return true, nil
}

func (c *MockClient) Disconnect(ctx context.Context) {
	if c.connected.Swap(false) {
		c.callbacks.Emit(ctx, EventDisconnected, Event{Kind: EventDisconnected, Time: time.Now()})
	}
}

// GetBalance returns a fixed demo balance while connected.
func (c *MockClient) GetBalance(ctx context.Context) (Record, error) {
	if !c.connected.Load() {
		return nil, nil
	}
	return Record{"balance": 10000.0, "currency": "USD"}, nil
}

func (c *MockClient) SendMessage(ctx context.Context, payload string) (bool, error) {
	if err := sleep(ctx, c.cfg.SendDelay); err != nil {
		return false, err
	}
	return c.connected.Load(), nil
}

func (c *MockClient) IsConnected() bool {
	return c.connected.Load()
}

func (c *MockClient) AddEventCallback(kind EventKind, h Handler) {
	c.callbacks.Register(kind, h)
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
