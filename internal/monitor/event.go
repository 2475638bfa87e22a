package monitor

import (
	"time"

	"github.com/MrWong99/meetnav/internal/capture"
)

// EventKind distinguishes the payload of an [Event].
type EventKind int

const (
	// EventEntry carries one entry that changed the transcript.
	EventEntry EventKind = iota

	// EventStatus reports a lifecycle change; see [Status].
	EventStatus

	// EventError reports a transient failure. Capture continues.
	EventError
)

// String returns the kind's name.
func (k EventKind) String() string {
	switch k {
	case EventEntry:
		return "entry"
	case EventStatus:
		return "status"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is the lifecycle phase reported by [EventStatus] events.
type Status string

const (
	StatusDiscovering  Status = "discovering"
	StatusAttached     Status = "attached"
	StatusBackfillDone Status = "backfill_done"
	StatusDetached     Status = "detached"
	StatusStopped      Status = "stopped"
)

// Event is published on the monitor's event channel. Only the field that
// matches Kind is set, plus Detail for human-readable context.
type Event struct {
	Kind   EventKind
	At     time.Time
	Entry  capture.Entry
	Status Status
	Err    error
	Detail string
}
