// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package agent

import (
	"errors"

	"github.com/ManuGH/camagent/internal/camera/worker"
)

var (
	// ErrInvalidated is returned once a fault latched the agent invalid.
	ErrInvalidated = worker.ErrInvalidated

	// ErrCaptureRejected reaches CaptureCallbacks.OnFailure when the camera
	// never reached a state that admits the capture.
	ErrCaptureRejected = worker.ErrCaptureRejected
	ErrCaptureAborted  = worker.ErrCaptureAborted
	ErrCaptureTimeout  = worker.ErrCaptureTimeout

	// ErrSettingsDropped is logged when accepted settings never reached an
	// opened, idle camera.
	ErrSettingsDropped = errors.New("settings not applied")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("camera agent closed")

	// ErrSettingsUnavailable is returned when the device could not report its settings.
	ErrSettingsUnavailable = errors.New("camera settings unavailable")

	ErrUnknownBackend     = errors.New("unknown camera backend")
	ErrBackendRegistered  = errors.New("camera backend already registered")
	ErrBackendNotAcquired = errors.New("camera backend not acquired")
)
