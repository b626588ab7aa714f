// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package dispatch

import "errors"

var (
	// ErrQueueFull is returned when a submission would exceed the queue capacity.
	// It signals a configuration error (callers flooding the camera), not back-pressure.
	ErrQueueFull = errors.New("dispatch queue full")

	// ErrDispatchEnded is returned for submissions after Stop.
	ErrDispatchEnded = errors.New("dispatch thread ended")

	// ErrWaitTimeout is returned by SubmitAndWait when the job did not finish in time.
	// Callers must treat it as fatal: the worker is stuck.
	ErrWaitTimeout = errors.New("dispatch wait timed out")
)
