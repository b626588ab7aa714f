// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package worker implements the device worker: the single goroutine that
// owns a camera handle.
//
// The worker drains a message deque one message at a time. Each message is
// gated on the ladder and activity state, performs at most one device call
// and runs under a recover boundary. A failure releases the handle, applies
// the configured fault policy and is reported to the fault sink together with
// the action history trail.
package worker

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ManuGH/camagent/internal/camera/device"
	"github.com/ManuGH/camagent/internal/camera/fault"
	"github.com/ManuGH/camagent/internal/camera/state"
	xglog "github.com/ManuGH/camagent/internal/log"
	"github.com/ManuGH/camagent/internal/metrics"
	"github.com/ManuGH/camagent/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// FaultPolicy selects what happens to the state machine after a fault.
type FaultPolicy string

const (
	// PolicyInvalidate latches the worker invalid; every later action is a no-op.
	PolicyInvalidate FaultPolicy = "invalidate"
	// PolicyReset returns the worker to unopened so the agent can be reused.
	PolicyReset FaultPolicy = "reset"
)

// ParseFaultPolicy validates a configured policy name. Empty selects PolicyInvalidate.
func ParseFaultPolicy(s string) (FaultPolicy, error) {
	switch FaultPolicy(s) {
	case "", PolicyInvalidate:
		return PolicyInvalidate, nil
	case PolicyReset:
		return PolicyReset, nil
	default:
		return "", fmt.Errorf("unknown fault policy %q (supported: invalidate, reset)", s)
	}
}

// Options configures a Worker.
type Options struct {
	// Name labels logs, metrics and spans (normally the backend name).
	Name          string
	Timeout       time.Duration
	HistoryLength int
	FaultPolicy   FaultPolicy
	// Sink receives faults. Nil installs a fail-fast sink.
	Sink   *fault.Sink
	Logger zerolog.Logger
}

// Worker is the device worker goroutine.
type Worker struct {
	name    string
	driver  device.Driver
	timeout time.Duration
	policy  FaultPolicy
	sink    *fault.Sink
	logger  zerolog.Logger
	tracer  trace.Tracer
	dropLog rate.Sometimes

	ladder   *state.Holder[state.Ladder]
	activity *state.Holder[state.Activity]
	hist     *history

	mu      sync.Mutex
	queue   []Message
	stopped bool
	wake    chan struct{}
	done    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	settingsMu sync.RWMutex
	settings   *device.Settings

	// Owned by the worker goroutine.
	dev           device.Handle
	gen           uint64
	index         int
	legacy        bool
	flashForced   bool
	releasing     bool
	pendingCancel int
	seq           uint64
	lastFrame     uint64
	lastAE        device.AEState
	lastAEFrame   uint64
	target        device.Target
	focus         *focusSlot
	preview       *previewSlot
	capture       *captureSlot
}

// New starts a worker for driver.
func New(driver device.Driver, opts Options) *Worker {
	if opts.Name == "" {
		opts.Name = driver.Name()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = state.DefaultTimeout
	}
	if opts.FaultPolicy == "" {
		opts.FaultPolicy = PolicyInvalidate
	}
	if opts.Sink == nil {
		opts.Sink = fault.NewSink(opts.Name, opts.Logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		name:     opts.Name,
		driver:   driver,
		timeout:  opts.Timeout,
		policy:   opts.FaultPolicy,
		sink:     opts.Sink,
		logger:   opts.Logger,
		tracer:   telemetry.Tracer("camagent.worker"),
		dropLog:  rate.Sometimes{First: 10, Interval: time.Second},
		ladder:   state.NewHolder(state.Unopened, opts.Timeout),
		activity: state.NewHolder(state.ActivityUnopened, opts.Timeout),
		hist:     newHistory(opts.HistoryLength),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		index:    -1,
	}

	names := make([]string, 0, 6)
	for _, s := range state.LadderStates() {
		names = append(names, s.String())
	}
	metrics.SetCameraState(w.name, state.Unopened.String(), names)
	w.ladder.OnChange(func(from, to state.Ladder) {
		metrics.SetCameraState(w.name, to.String(), names)
		w.logger.Debug().
			Str(xglog.FieldOldState, from.String()).
			Str(xglog.FieldNewState, to.String()).
			Msg("camera state changed")
	})

	go w.run()
	return w
}

// Name returns the worker label.
func (w *Worker) Name() string { return w.name }

// Ladder returns the linear state holder.
func (w *Worker) Ladder() *state.Holder[state.Ladder] { return w.ladder }

// Activity returns the parallel state holder.
func (w *Worker) Activity() *state.Holder[state.Activity] { return w.activity }

// Invalid reports whether a fault latched the worker invalid.
func (w *Worker) Invalid() bool { return w.ladder.Invalid() }

// History returns the diagnostic trail of recent action codes.
func (w *Worker) History() string { return w.hist.String() }

// CachedSettings returns a copy of the settings cache, if filled.
func (w *Worker) CachedSettings() (device.Settings, bool) {
	w.settingsMu.RLock()
	defer w.settingsMu.RUnlock()
	if w.settings == nil {
		return device.Settings{}, false
	}
	return w.settings.Clone(), true
}

// Post appends msg to the queue. It reports false after Stop.
func (w *Worker) Post(msg Message) bool {
	return w.enqueue(msg, false)
}

// PostFront inserts msg ahead of everything queued.
func (w *Worker) PostFront(msg Message) bool {
	return w.enqueue(msg, true)
}

func (w *Worker) enqueue(msg Message, front bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return false
	}
	if front {
		w.queue = slices.Insert(w.queue, 0, msg)
	} else {
		w.queue = append(w.queue, msg)
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

// Sync blocks until every message queued before the call has been processed.
// Barriers complete even on an invalid worker.
func (w *Worker) Sync(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = w.timeout
	}
	done := make(chan struct{})
	if !w.Post(Message{Action: actionBarrier, Payload: done}) {
		return ErrStopped
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrSyncTimeout, timeout)
	}
}

// Stop rejects new messages, processes what is queued, releases the device
// and waits for the goroutine to exit. It is safe to call more than once.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.wake)
	}
	w.mu.Unlock()
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)
	defer w.cancel()
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			stopped := w.stopped
			w.mu.Unlock()
			if stopped {
				w.shutdown()
				return
			}
			<-w.wake
			continue
		}
		msg := w.queue[0]
		w.queue[0] = Message{}
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.process(msg)
	}
}

func (w *Worker) shutdown() {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Err(fault.FromPanic(r)).Msg("release on shutdown panicked")
		}
	}()
	if w.dev != nil {
		w.logger.Info().Int(xglog.FieldCameraID, w.index).Msg("releasing camera on shutdown")
		w.release()
	}
}

// events tags backend callbacks with the handle generation they belong to.
type events struct {
	w   *Worker
	gen uint64
}

func (e events) OnResult(r device.Result) {
	e.w.Post(Message{Action: actionResult, Payload: r, gen: e.gen})
}

func (e events) OnCapture(ev device.CaptureEvent) {
	e.w.Post(Message{Action: actionCaptureEvent, Payload: ev, gen: e.gen})
}

func (e events) OnError(code int) {
	e.w.Post(Message{Action: actionDeviceError, Arg0: code, gen: e.gen})
}
