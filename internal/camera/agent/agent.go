// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package agent is the public camera API.
//
// An Agent turns method calls from any goroutine into jobs on its dispatch
// thread; the jobs post action messages to the device worker. Callbacks are
// always delivered through the executor the caller passed in.
//
// Operations return once the job is queued unless documented otherwise.
// StopPreview, CancelAutoFocus, Settings and CloseDevice(true) block until
// the worker has processed the request.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/camagent/internal/camera/device"
	"github.com/ManuGH/camagent/internal/camera/dispatch"
	"github.com/ManuGH/camagent/internal/camera/executor"
	"github.com/ManuGH/camagent/internal/camera/fault"
	"github.com/ManuGH/camagent/internal/camera/state"
	"github.com/ManuGH/camagent/internal/camera/worker"
	xglog "github.com/ManuGH/camagent/internal/log"
	"github.com/ManuGH/camagent/internal/metrics"
	"github.com/rs/zerolog"
)

type (
	OpenCallbacks    = worker.OpenCallbacks
	CaptureCallbacks = worker.CaptureCallbacks
)

// Options configures an Agent.
type Options struct {
	// Name labels logs and metrics; defaults to the driver name.
	Name          string
	QueueCapacity int
	// Timeout is the single bound for every blocking wait.
	Timeout       time.Duration
	HistoryLength int
	FaultPolicy   worker.FaultPolicy

	// FaultHandler receives faults on FaultExecutor. Without a handler a
	// fault crashes the process.
	FaultHandler  fault.Handler
	FaultExecutor executor.Executor

	Logger zerolog.Logger
}

// Agent controls one camera backend.
type Agent struct {
	name    string
	caps    device.CapabilitySet
	timeout time.Duration
	logger  zerolog.Logger

	sink     *fault.Sink
	worker   *worker.Worker
	dispatch *dispatch.Thread

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	sizesLocked bool
	accepted    *device.Settings
	closed      bool
	closeOnce   sync.Once
}

// New starts an agent over driver. caps gates ApplySettings; nil accepts everything.
func New(driver device.Driver, caps device.CapabilitySet, opts Options) *Agent {
	if opts.Name == "" {
		opts.Name = driver.Name()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = state.DefaultTimeout
	}
	if caps == nil {
		caps = device.AnyCapabilities{}
	}
	logger := opts.Logger.With().Str(xglog.FieldBackend, opts.Name).Logger()

	sink := fault.NewSink(opts.Name, logger)
	if opts.FaultHandler != nil {
		sink.SetHandler(opts.FaultHandler, opts.FaultExecutor)
	}

	w := worker.New(driver, worker.Options{
		Name:          opts.Name,
		Timeout:       opts.Timeout,
		HistoryLength: opts.HistoryLength,
		FaultPolicy:   opts.FaultPolicy,
		Sink:          sink,
		Logger:        logger.With().Str(xglog.FieldComponent, "camera.worker").Logger(),
	})
	d := dispatch.New(dispatch.Options{
		Name:      opts.Name,
		Capacity:  opts.QueueCapacity,
		Timeout:   opts.Timeout,
		Worker:    w,
		OnFailure: sink.DispatchException,
		Logger:    logger.With().Str(xglog.FieldComponent, "camera.dispatch").Logger(),
	})
	d.Start()

	ctx, cancel := context.WithCancel(context.Background())
	return &Agent{
		name:     opts.Name,
		caps:     caps,
		timeout:  opts.Timeout,
		logger:   logger,
		sink:     sink,
		worker:   w,
		dispatch: d,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Name returns the backend name.
func (a *Agent) Name() string { return a.name }

// State returns the current ladder state.
func (a *Agent) State() state.Ladder { return a.worker.Ladder().Get() }

// Activity returns the current activity.
func (a *Agent) Activity() state.Activity { return a.worker.Activity().Get() }

// Invalid reports whether a fault latched the agent invalid.
func (a *Agent) Invalid() bool { return a.worker.Invalid() }

// Timeout returns the bound applied to every blocking wait.
func (a *Agent) Timeout() time.Duration { return a.timeout }

// History returns the worker's diagnostic trail.
func (a *Agent) History() string { return a.worker.History() }

// WaitForState blocks until the ladder is in set, the operation timeout
// elapses or ctx ends.
func (a *Agent) WaitForState(ctx context.Context, set state.Set[state.Ladder]) bool {
	return a.worker.Ladder().WaitFor(ctx, set)
}

// OpenDevice opens camera index. Exactly one of the callbacks fires.
func (a *Agent) OpenDevice(ex executor.Executor, index int, cb OpenCallbacks) error {
	return a.submit("open", func() {
		a.worker.Post(worker.OpenMessage(index, ex, cb))
	})
}

// Reconnect reopens the last opened camera after a release.
func (a *Agent) Reconnect(ex executor.Executor, cb OpenCallbacks) error {
	return a.submit("reconnect", func() {
		a.worker.Post(worker.ReconnectMessage(ex, cb))
	})
}

// CloseDevice releases the camera; with sync it returns once the handle is gone.
func (a *Agent) CloseDevice(sync bool) error {
	a.unlockSizes()
	job := func() { a.worker.Post(worker.Simple(worker.ActionRelease)) }
	return a.run("close", job, sync, false)
}

// ApplySettings queues s if the backend supports it. It returns false for
// unsupported settings, for a size change while a preview target is attached
// and when the job could not be queued. True means accepted, not applied.
func (a *Agent) ApplySettings(s device.Settings) bool {
	if !a.caps.Supports(s) {
		a.logger.Debug().Msg("settings not supported by backend")
		return false
	}

	a.mu.Lock()
	if a.sizesLocked && a.accepted != nil && !s.SameSizes(*a.accepted) {
		a.mu.Unlock()
		a.logger.Warn().
			Str("preview_size", s.PreviewSize.String()).
			Str("photo_size", s.PhotoSize.String()).
			Msg("size change rejected while a preview target is attached")
		return false
	}
	snapshot := s.Clone()
	kept := snapshot.Clone()
	prev := a.accepted
	a.accepted = &kept
	a.mu.Unlock()

	err := a.submit("apply settings", func() {
		if !a.worker.Ladder().WaitFor(a.ctx, state.Opened) {
			a.dropSettings(&kept, prev, a.admissionError(ErrSettingsDropped, "camera not opened"))
			return
		}
		if !a.worker.Activity().WaitToAvoid(a.ctx, state.Busy) {
			a.dropSettings(&kept, prev, a.admissionError(ErrSettingsDropped, "camera busy"))
			return
		}
		a.worker.Post(worker.ApplySettingsMessage(snapshot))
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("apply settings not queued")
		a.restoreAccepted(&kept, prev)
		return false
	}
	return true
}

// dropSettings abandons an accepted snapshot that never reached the worker.
// The size lock falls back to the previously accepted settings.
func (a *Agent) dropSettings(kept, prev *device.Settings, err error) {
	metrics.IncRequestDropped(a.name, "apply_settings")
	a.logger.Warn().Err(err).Str(xglog.FieldState, a.State().String()).Msg("settings dropped")
	a.restoreAccepted(kept, prev)
}

func (a *Agent) restoreAccepted(kept, prev *device.Settings) {
	a.mu.Lock()
	if a.accepted == kept {
		a.accepted = prev
	}
	a.mu.Unlock()
}

// SetPreviewTarget attaches target, or detaches it when nil. While a target is
// attached preview and photo sizes are locked.
func (a *Agent) SetPreviewTarget(target device.Target, sync bool) error {
	a.mu.Lock()
	a.sizesLocked = target != nil
	a.mu.Unlock()

	job := func() { a.worker.Post(worker.SetPreviewTargetMessage(target)) }
	if sync {
		return a.submitAndWait("set preview target", job)
	}
	return a.submit("set preview target", job)
}

// StartPreview starts streaming. onStarted, if set, fires on the first frame.
func (a *Agent) StartPreview(ex executor.Executor, onStarted func()) error {
	return a.submit("start preview", func() {
		a.worker.Post(worker.StartPreviewMessage(ex, onStarted))
	})
}

// StopPreview stops streaming and returns once the device has stopped.
func (a *Agent) StopPreview() error {
	a.unlockSizes()
	return a.submitAndWait("stop preview", func() {
		a.worker.Post(worker.Simple(worker.ActionStopPreview))
	})
}

// AutoFocus triggers a focus sweep; cb receives whether focus locked.
func (a *Agent) AutoFocus(ex executor.Executor, cb func(focused bool)) error {
	return a.submit("autofocus", func() {
		a.worker.Post(worker.AutoFocusMessage(ex, cb))
	})
}

// CancelAutoFocus jumps the worker queue: it runs before any queued
// autofocus, and autofocus requests already submitted are dropped. It returns
// once the worker processed the cancel.
func (a *Agent) CancelAutoFocus() error {
	if err := a.usable(); err != nil {
		return err
	}
	done := make(chan struct{})
	if !a.worker.PostFront(worker.CancelAutoFocusMessage(done)) {
		return ErrClosed
	}
	finish := worker.Simple(worker.ActionCancelAutoFocusFinish)
	if err := a.submit("cancel autofocus", func() { a.worker.Post(finish) }); err != nil {
		// The cancel is already in the worker; without its finish marker every
		// later autofocus would be dropped.
		a.worker.Post(finish)
		return err
	}

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return a.reportTimeout("cancel autofocus", fmt.Errorf("%w after %s", dispatch.ErrWaitTimeout, a.timeout))
	}
}

// TakePicture captures one still once preview is active and no other capture
// is running. The wait happens on the dispatch goroutine, not the caller's.
// A queued capture that will not produce a JPEG reports through
// cb.OnFailure.
func (a *Agent) TakePicture(ex executor.Executor, cb CaptureCallbacks) error {
	return a.submit("capture", func() {
		if !a.worker.Ladder().WaitFor(a.ctx, state.LadderFrom(state.PreviewActive)) {
			a.dropCapture(ex, cb, a.admissionError(ErrCaptureRejected, "preview not active"))
			return
		}
		if !a.worker.Activity().WaitToAvoid(a.ctx, state.Busy) {
			a.dropCapture(ex, cb, a.admissionError(ErrCaptureRejected, "previous capture still running"))
			return
		}
		a.worker.Post(worker.CaptureMessage(ex, cb))
	})
}

func (a *Agent) dropCapture(ex executor.Executor, cb CaptureCallbacks, err error) {
	metrics.IncRequestDropped(a.name, "capture")
	a.logger.Warn().Err(err).Str(xglog.FieldState, a.State().String()).Msg("capture dropped")
	if fn := cb.OnFailure; fn != nil {
		if !executor.Deliver(ex, func() { fn(err) }) {
			a.logger.Warn().Msg("callback executor rejected capture failure")
		}
	}
}

// admissionError explains a failed dispatch-side state wait.
func (a *Agent) admissionError(base error, reason string) error {
	switch {
	case a.ctx.Err() != nil:
		return ErrClosed
	case a.worker.Invalid():
		return ErrInvalidated
	default:
		return fmt.Errorf("%w: %s after %s", base, reason, a.timeout)
	}
}

// Unlock lends the sensor to another client until Lock.
func (a *Agent) Unlock() error {
	return a.submit("unlock", func() { a.worker.Post(worker.Simple(worker.ActionUnlock)) })
}

// Lock reclaims the sensor after Unlock.
func (a *Agent) Lock() error {
	return a.submit("lock", func() { a.worker.Post(worker.Simple(worker.ActionLock)) })
}

// Settings returns the device's current settings, reading them from the
// device only when the cache is empty.
func (a *Agent) Settings() (device.Settings, error) {
	if s, ok := a.worker.CachedSettings(); ok {
		return s, nil
	}
	if err := a.submitAndWait("settings", func() {
		a.worker.Post(worker.Simple(worker.ActionRefreshSettings))
	}); err != nil {
		return device.Settings{}, err
	}
	if s, ok := a.worker.CachedSettings(); ok {
		return s, nil
	}
	return device.Settings{}, ErrSettingsUnavailable
}

// Close stops the dispatch thread and the worker, releasing the device.
func (a *Agent) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()

		a.cancel()
		a.dispatch.Stop()
		a.worker.Stop()
		a.logger.Debug().Msg("camera agent closed")
	})
}

func (a *Agent) usable() error {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if a.worker.Invalid() {
		return ErrInvalidated
	}
	return nil
}

func (a *Agent) unlockSizes() {
	a.mu.Lock()
	a.sizesLocked = false
	a.mu.Unlock()
}

func (a *Agent) submit(op string, job func()) error {
	return a.run(op, job, false, true)
}

func (a *Agent) submitAndWait(op string, job func()) error {
	return a.run(op, job, true, true)
}

// run queues job. Release work is allowed on an invalid agent; every other
// operation reports ErrInvalidated.
func (a *Agent) run(op string, job func(), wait, needValid bool) error {
	err := a.usable()
	if err != nil && (needValid || !errors.Is(err, ErrInvalidated)) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !wait {
		if err := a.dispatch.Submit(job); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
	if err := a.dispatch.SubmitAndWait(job); err != nil {
		return a.reportTimeout(op, err)
	}
	return nil
}

// reportTimeout forwards a stuck dispatch or worker to the fault sink.
func (a *Agent) reportTimeout(op string, err error) error {
	err = fmt.Errorf("%s: %w", op, err)
	if errors.Is(err, dispatch.ErrWaitTimeout) {
		a.sink.DispatchException(err)
	}
	return err
}
