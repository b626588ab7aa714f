// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package testkit

import (
	"context"
	"fmt"
	"sync"

	"github.com/ManuGH/camagent/internal/camera/device"
)

// Handle is a fake opened sensor. It implements device.Locker.
type Handle struct {
	d      *Driver
	info   device.Info
	events device.Events

	mu       sync.Mutex
	failures map[string]error
	panics   map[string]bool
	manual   bool
	converge bool
	frame    uint64
	released int
	settings device.Settings
	target   device.Target
}

var _ device.Locker = (*Handle)(nil)

// Fail makes the named call return err.
func (h *Handle) Fail(call string, err error) {
	h.mu.Lock()
	h.failures[call] = err
	h.mu.Unlock()
}

// Panic makes the named call panic.
func (h *Handle) Panic(call string) {
	h.mu.Lock()
	h.panics[call] = true
	h.mu.Unlock()
}

// Releases returns how many times Release was called.
func (h *Handle) Releases() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

func (h *Handle) Target() device.Target {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.target
}

// Emit delivers a result with the next frame number and returns it.
func (h *Handle) Emit(af device.AFState, ae device.AEState) device.Result {
	h.mu.Lock()
	h.frame++
	r := device.Result{Frame: h.frame, AF: af, AE: ae}
	h.mu.Unlock()
	h.events.OnResult(r)
	return r
}

// EmitResult delivers r as is.
func (h *Handle) EmitResult(r device.Result) {
	h.events.OnResult(r)
}

func (h *Handle) EmitCapture(kind device.CaptureKind, data []byte) {
	h.events.OnCapture(device.CaptureEvent{Kind: kind, Data: data})
}

func (h *Handle) EmitError(code int) {
	h.events.OnError(code)
}

// call records a backend call and applies scripted failures.
func (h *Handle) call(name string) (auto bool, err error) {
	h.d.enter(name)
	defer h.d.exit()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.panics[name] {
		panic(fmt.Sprintf("testkit: %s panicked", name))
	}
	if h.released > 0 {
		return false, device.ErrReleased
	}
	return !h.manual, h.failures[name]
}

func (h *Handle) idleAE() device.AEState {
	if h.converge {
		return device.AEConverged
	}
	return device.AESearching
}

func (h *Handle) Info() device.Info { return h.info }

func (h *Handle) Configure(_ context.Context, s device.Settings) error {
	if _, err := h.call("configure"); err != nil {
		return err
	}
	h.mu.Lock()
	h.settings = s.Clone()
	h.mu.Unlock()
	return nil
}

func (h *Handle) CurrentSettings(context.Context) (device.Settings, error) {
	if _, err := h.call("current_settings"); err != nil {
		return device.Settings{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.settings.Clone(), nil
}

func (h *Handle) AttachPreviewTarget(_ context.Context, target device.Target) error {
	if _, err := h.call("attach_preview_target"); err != nil {
		return err
	}
	h.mu.Lock()
	h.target = target
	h.mu.Unlock()
	return nil
}

func (h *Handle) StartRepeatingPreview(context.Context) error {
	auto, err := h.call("start_preview")
	if err != nil || !auto {
		return err
	}
	h.Emit(device.AFInactive, h.idleAE())
	return nil
}

func (h *Handle) StopRepeatingPreview(context.Context) error {
	_, err := h.call("stop_preview")
	return err
}

func (h *Handle) TriggerAutoFocus(context.Context) error {
	auto, err := h.call("trigger_autofocus")
	if err != nil || !auto {
		return err
	}
	h.Emit(device.AFScanning, h.idleAE())
	h.Emit(device.AFFocusedLocked, h.idleAE())
	return nil
}

func (h *Handle) CancelAutoFocus(context.Context) error {
	_, err := h.call("cancel_autofocus")
	return err
}

func (h *Handle) TriggerPrecapture(context.Context) error {
	auto, err := h.call("trigger_precapture")
	if err != nil || !auto {
		return err
	}
	h.Emit(device.AFInactive, device.AEPrecapture)
	h.Emit(device.AFInactive, device.AEConverged)
	return nil
}

func (h *Handle) CaptureStill(context.Context) error {
	auto, err := h.call("capture_still")
	if err != nil || !auto {
		return err
	}
	h.EmitCapture(device.CaptureShutter, nil)
	h.EmitCapture(device.CaptureRaw, []byte("raw"))
	h.EmitCapture(device.CapturePostview, []byte("postview"))
	h.EmitCapture(device.CaptureJPEG, []byte("jpeg"))
	return nil
}

func (h *Handle) Unlock(context.Context) error {
	_, err := h.call("unlock")
	return err
}

func (h *Handle) Lock(context.Context) error {
	_, err := h.call("lock")
	return err
}

func (h *Handle) Release() error {
	h.d.enter("release")
	defer h.d.exit()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.released++
	if h.released > 1 {
		return fmt.Errorf("testkit: handle released %d times", h.released)
	}
	return nil
}
