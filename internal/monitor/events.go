package monitor

import (
	"fmt"

	"github.com/rileyhilliard/connmon/internal/events"
)

// EventKind identifies a consumer-facing monitor event.
type EventKind int

const (
	EventStatsUpdate EventKind = iota
	EventAlert
)

func (k EventKind) String() string {
	switch k {
	case EventStatsUpdate:
		return "stats_update"
	case EventAlert:
		return "alert"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is the payload delivered to consumer handlers. It is one of
// StatsUpdate or AlertRaised.
type Event interface {
	Kind() EventKind
	isEvent()
}

// StatsUpdate carries the statistics computed at the end of a cycle.
type StatsUpdate struct {
	Stats StatsSnapshot
}

func (StatsUpdate) Kind() EventKind { return EventStatsUpdate }
func (StatsUpdate) isEvent()        {}

// AlertRaised carries one fired alert.
type AlertRaised struct {
	Alert Alert
}

func (AlertRaised) Kind() EventKind { return EventAlert }
func (AlertRaised) isEvent()        {}

// EventHandler consumes monitor events.
type EventHandler = events.Handler[Event]
