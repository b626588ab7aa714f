// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package device defines the backend capability the camera core drives.
//
// A Driver opens sensors; the returned Handle is owned exclusively by the
// device worker goroutine. Backends report asynchronous results through the
// Events sink passed to Open, from whatever goroutine they like: the worker
// reposts them onto its own queue.
package device

import (
	"context"
	"errors"
)

var (
	// ErrDisabled is returned by Open when policy forbids using the camera.
	ErrDisabled = errors.New("camera disabled")

	// ErrInUse is returned by Open when another client holds the sensor.
	ErrInUse = errors.New("camera in use")

	// ErrNoSuchCamera is returned for an index the driver does not know.
	ErrNoSuchCamera = errors.New("no such camera")

	// ErrReleased is returned by Handle methods after Release.
	ErrReleased = errors.New("camera handle released")
)

// Info describes a camera independent of whether it is open.
type Info struct {
	Index int
	// Facing is a free-form orientation label ("back", "front", "external").
	Facing string
	// Legacy devices have a simplified pipeline without precapture metering.
	Legacy bool
}

// Driver opens camera handles.
type Driver interface {
	// Name identifies the backend ("legacy", "modern", "sim").
	Name() string
	// Cameras lists the indices the backend can open.
	Cameras() []Info
	// Open acquires the sensor. Events may be invoked from any goroutine until
	// Release returns.
	Open(ctx context.Context, index int, events Events) (Handle, error)
}

// Handle is an opened sensor. Only the device worker goroutine calls it.
type Handle interface {
	Info() Info
	Configure(ctx context.Context, s Settings) error
	CurrentSettings(ctx context.Context) (Settings, error)
	// AttachPreviewTarget binds a render target; nil detaches.
	AttachPreviewTarget(ctx context.Context, target Target) error
	StartRepeatingPreview(ctx context.Context) error
	StopRepeatingPreview(ctx context.Context) error
	TriggerAutoFocus(ctx context.Context) error
	CancelAutoFocus(ctx context.Context) error
	// TriggerPrecapture starts an auto-exposure convergence sequence.
	TriggerPrecapture(ctx context.Context) error
	// CaptureStill takes one picture; progress is reported through Events.OnCapture.
	CaptureStill(ctx context.Context) error
	Release() error
}

// Locker is implemented by handles that can lend the sensor to another
// client (for example a video recorder) and reclaim it.
type Locker interface {
	Unlock(ctx context.Context) error
	Lock(ctx context.Context) error
}

// Target is an opaque preview render target owned by the client.
type Target interface {
	TargetID() string
}

// Events receives asynchronous backend output.
type Events interface {
	// OnResult delivers per-frame metadata; partial results may precede the
	// final result of the same frame and may arrive out of order.
	OnResult(r Result)
	// OnCapture delivers still-capture progress.
	OnCapture(e CaptureEvent)
	// OnError reports a backend failure code.
	OnError(code int)
}
