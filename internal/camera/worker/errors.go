// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package worker

import "errors"

var (
	// ErrInvalidated is reported for work addressed to a worker whose state
	// has been invalidated by a fault.
	ErrInvalidated = errors.New("camera state invalidated")

	// ErrStopped is returned by Sync after Stop.
	ErrStopped = errors.New("device worker stopped")

	// ErrSyncTimeout is returned by Sync when the queue did not drain in time.
	ErrSyncTimeout = errors.New("device worker sync timed out")

	// ErrCaptureRejected is delivered to capture callbacks when the request
	// was not admitted in the current state.
	ErrCaptureRejected = errors.New("capture not admitted")

	// ErrCaptureAborted is delivered when a pending capture ended without a
	// JPEG: the device reported an error, preview stopped or the camera was
	// released.
	ErrCaptureAborted = errors.New("capture aborted")

	// ErrCaptureTimeout is delivered when the device produced no JPEG within
	// the operation timeout.
	ErrCaptureTimeout = errors.New("capture timed out")

	// ErrNeverOpened is delivered to reconnect callbacks when no camera was
	// opened before.
	ErrNeverOpened = errors.New("no camera opened before")
)
