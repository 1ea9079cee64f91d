// Package notice implements the per-object notification bus (C2): an
// append-only list of typed, leveled messages plus an abort flag and a
// progress percentage, merged upward by parent parsers. No pack example
// implements this bus (the teacher only returns error), so it is written
// fresh in the teacher's plain-struct style rather than adopting a logging
// framework — see DESIGN.md for why this stays on the standard library.
package notice

import (
	"fmt"
	"sync/atomic"
)

// Level is the severity of a Notification.
type Level int

const (
	Info Level = iota
	Warning
	Critical
)

func (l Level) String() string {
	switch l {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Notification is one entry in a Bus, keyed by a free-form context string
// (e.g. "Cues", "SeekHead", "Tracks[2]").
type Notification struct {
	Level   Level
	Context string
	Message string
}

func (n Notification) String() string {
	return fmt.Sprintf("[%s] %s: %s", n.Level, n.Context, n.Message)
}

// Bus accumulates notifications for one container/element and tracks an
// externally settable abort flag plus a progress percentage for long
// operations (§5 cancellation model).
type Bus struct {
	entries []Notification
	abort   int32
	percent int
}

// New returns an empty Bus.
func New() *Bus { return &Bus{} }

// Add appends a notification.
func (b *Bus) Add(level Level, context, message string) {
	b.entries = append(b.entries, Notification{Level: level, Context: context, Message: message})
}

// Entries returns all notifications recorded so far, in order.
func (b *Bus) Entries() []Notification { return b.entries }

// HighestLevel returns the most severe level seen, or Info if the bus is
// empty (spec §7: "The highest level seen is also exposed as an aggregate").
func (b *Bus) HighestLevel() Level {
	highest := Info
	for _, e := range b.entries {
		if e.Level > highest {
			highest = e.Level
		}
	}
	return highest
}

// HasCritical reports whether any critical-level notification was recorded.
// Per spec §7, critical notifications alone never stop processing; only a
// raised error does, so callers that want to act on severity poll this
// explicitly rather than relying on control flow.
func (b *Bus) HasCritical() bool { return b.HighestLevel() == Critical }

// Merge appends another bus's entries into this one, preserving order. This
// is how a parent parser folds a child's (e.g. CuesUpdater's, SeekInfo's)
// notifications into the container's own bus on emit.
func (b *Bus) Merge(other *Bus) {
	if other == nil {
		return
	}
	b.entries = append(b.entries, other.entries...)
}

// Abort requests cancellation of the in-flight operation. It is safe to call
// from outside the goroutine driving the parse/write, matching spec §5's
// "atomically-settable abort flag owned externally".
func (b *Bus) Abort() { atomic.StoreInt32(&b.abort, 1) }

// Aborted reports whether Abort has been called.
func (b *Bus) Aborted() bool { return atomic.LoadInt32(&b.abort) != 0 }

// ResetAbort clears the abort flag, e.g. before starting a new ApplyChanges.
func (b *Bus) ResetAbort() { atomic.StoreInt32(&b.abort, 0) }

// SetPercent records the current progress percentage (0-100) of a
// long-running operation such as the segment writer's cluster copy.
func (b *Bus) SetPercent(p int) { b.percent = p }

// Percent returns the last recorded progress percentage.
func (b *Bus) Percent() int { return b.percent }
