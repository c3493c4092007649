// Package transport defines the connection capability the monitor probes and
// the implementations connmon ships: a simulated client, a Socket.IO client
// over WebSocket, and an SSH reachability client.
package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rileyhilliard/connmon/internal/events"
)

// EventKind identifies a connection lifecycle event raised by a transport.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventReconnected
	EventAuthError
)

// EventKinds lists every lifecycle kind, in declaration order.
var EventKinds = []EventKind{EventConnected, EventDisconnected, EventReconnected, EventAuthError}

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventReconnected:
		return "reconnected"
	case EventAuthError:
		return "auth_error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a lifecycle notification. Detail carries transport-specific
// context such as the endpoint URL or the server's rejection reason.
type Event struct {
	Kind   EventKind
	Time   time.Time
	Detail string
}

// Handler receives lifecycle events.
type Handler = events.Handler[Event]

// Record is the payload returned by a health probe. A nil Record means the
// transport answered but reported nothing useful.
type Record map[string]any

// Transport is a connection the monitor can probe.
type Transport interface {
	// Connect establishes the connection. false with a nil error is a clean
	// refusal; an error means the attempt itself broke.
	Connect(ctx context.Context) (bool, error)
	// Disconnect tears the connection down. Best effort, never fails.
	Disconnect(ctx context.Context)
	// GetBalance is the lightweight health probe.
	GetBalance(ctx context.Context) (Record, error)
	// SendMessage writes one payload, used as the keepalive probe.
	SendMessage(ctx context.Context, payload string) (bool, error)
	// IsConnected reports the current connectivity flag without blocking.
	IsConnected() bool
	// AddEventCallback registers h for lifecycle events of the given kind.
	AddEventCallback(kind EventKind, h Handler)
}

// Region is the environment a session runs against.
type Region string

const (
	RegionDemo Region = "DEMO"
	RegionLive Region = "LIVE"
)

// ParseRegion accepts "demo"/"live" in any case.
func ParseRegion(s string) (Region, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(RegionDemo):
		return RegionDemo, nil
	case string(RegionLive):
		return RegionLive, nil
	default:
		return "", fmt.Errorf("unknown region %q (want demo or live)", s)
	}
}

// Session identifies one logical monitoring session.
type Session struct {
	ID         string
	SSID       string
	Region     Region
	Persistent bool
}

// NewSession creates a session with a fresh random ID.
func NewSession(ssid string, region Region) Session {
	return Session{
		ID:     uuid.NewString(),
		SSID:   ssid,
		Region: region,
	}
}

// IsDemo reports whether the session targets the demo environment.
func (s Session) IsDemo() bool {
	return s.Region != RegionLive
}

// Factory builds a transport for a session.
type Factory func(s Session) (Transport, error)
