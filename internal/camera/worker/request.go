// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package worker

import "time"

// request is a one-shot token for one logical request. Results are matched
// against it by frame number: frames at or before the one current when the
// request was armed predate it, and frames older than the newest seen so far
// arrived out of order.
type request struct {
	id        uint64
	after     uint64
	highWater uint64
}

// accept reports whether frame is new enough for this request and, if so,
// advances the high-water mark.
func (r *request) accept(frame uint64) bool {
	if frame <= r.after || frame < r.highWater {
		return false
	}
	r.highWater = frame
	return true
}

type focusSlot struct {
	request
	args focusArgs
}

type previewSlot struct {
	request
	args previewArgs
}

type capturePhase uint8

const (
	phasePrecapture capturePhase = iota + 1
	phaseCapturing
)

// captureTimeout identifies the phase a capture timer was armed for.
type captureTimeout struct {
	id    uint64
	phase capturePhase
}

type captureSlot struct {
	request
	args  captureArgs
	phase capturePhase
	timer *time.Timer
}

func (c *captureSlot) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
