// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package device

// AFState is the autofocus state reported with each result.
type AFState uint8

const (
	AFInactive AFState = iota
	AFScanning
	AFFocusedLocked
	AFNotFocusedLocked
)

func (s AFState) String() string {
	switch s {
	case AFInactive:
		return "inactive"
	case AFScanning:
		return "scanning"
	case AFFocusedLocked:
		return "focused_locked"
	case AFNotFocusedLocked:
		return "not_focused_locked"
	default:
		return "unknown"
	}
}

// Locked reports whether the AF routine has finished (successfully or not).
func (s AFState) Locked() bool {
	return s == AFFocusedLocked || s == AFNotFocusedLocked
}

// AEState is the auto-exposure state reported with each result.
type AEState uint8

const (
	AEInactive AEState = iota
	AESearching
	AEPrecapture
	AEConverged
	AEFlashRequired
)

func (s AEState) String() string {
	switch s {
	case AEInactive:
		return "inactive"
	case AESearching:
		return "searching"
	case AEPrecapture:
		return "precapture"
	case AEConverged:
		return "converged"
	case AEFlashRequired:
		return "flash_required"
	default:
		return "unknown"
	}
}

// Settled reports whether exposure is good enough to capture.
func (s AEState) Settled() bool {
	return s == AEConverged || s == AEFlashRequired
}

// Result is the metadata of one preview frame.
type Result struct {
	// Frame is a monotonically increasing frame number.
	Frame   uint64
	Partial bool
	AF      AFState
	AE      AEState
}

// CaptureKind enumerates still-capture progress events.
type CaptureKind uint8

const (
	CaptureShutter CaptureKind = iota + 1
	CaptureRaw
	CapturePostview
	CaptureJPEG
)

func (k CaptureKind) String() string {
	switch k {
	case CaptureShutter:
		return "shutter"
	case CaptureRaw:
		return "raw"
	case CapturePostview:
		return "postview"
	case CaptureJPEG:
		return "jpeg"
	default:
		return "unknown"
	}
}

// CaptureEvent is one step of a still capture. CaptureJPEG is always last.
type CaptureEvent struct {
	Kind CaptureKind
	Data []byte
}
