// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package state

import "fmt"

// Code is the constraint satisfied by every state space.
type Code interface {
	~uint8
	fmt.Stringer
}

// Ladder is the linear device state. Values are ordered; a higher value means
// the device has progressed further along open → configure → preview → focus.
type Ladder uint8

const (
	Unopened Ladder = iota
	Unconfigured
	Configured
	PreviewReady
	PreviewActive
	FocusLocked

	ladderCount
)

func (s Ladder) String() string {
	switch s {
	case Unopened:
		return "unopened"
	case Unconfigured:
		return "unconfigured"
	case Configured:
		return "configured"
	case PreviewReady:
		return "preview_ready"
	case PreviewActive:
		return "preview_active"
	case FocusLocked:
		return "focus_locked"
	default:
		return fmt.Sprintf("ladder(%d)", uint8(s))
	}
}

// AtLeast reports whether s is at or beyond min on the ladder.
func (s Ladder) AtLeast(min Ladder) bool {
	return s >= min
}

// Valid reports whether s is a defined ladder state.
func (s Ladder) Valid() bool {
	return s < ladderCount
}

// LadderStates lists every ladder state in order.
func LadderStates() []Ladder {
	out := make([]Ladder, 0, ladderCount)
	for s := Unopened; s < ladderCount; s++ {
		out = append(out, s)
	}
	return out
}

// LadderFrom returns the set of ladder states at or beyond min.
func LadderFrom(min Ladder) Set[Ladder] {
	var set Set[Ladder]
	for s := min; s < ladderCount; s++ {
		set = set.With(s)
	}
	return set
}

// Opened is every ladder state in which a device handle exists.
var Opened = LadderFrom(Unconfigured)

// Activity is the parallel state space: what the opened sensor is doing right
// now, independent of how far it is configured.
type Activity uint8

const (
	ActivityUnopened Activity = iota
	Idle
	Unlocked
	Capturing
	Focusing

	activityCount
)

func (a Activity) String() string {
	switch a {
	case ActivityUnopened:
		return "unopened"
	case Idle:
		return "idle"
	case Unlocked:
		return "unlocked"
	case Capturing:
		return "capturing"
	case Focusing:
		return "focusing"
	default:
		return fmt.Sprintf("activity(%d)", uint8(a))
	}
}

// Valid reports whether a is a defined activity state.
func (a Activity) Valid() bool {
	return a < activityCount
}

// Busy is the activity set during which a new capture must not start.
var Busy = Of(Capturing)
