// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package dispatch serializes camera jobs onto a single goroutine.
//
// Jobs run strictly in submission order. After each job the dispatch
// goroutine hands control to the device worker and blocks until the worker
// has drained everything the job posted, so dispatch and worker execution
// interleave but never overlap.
package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/camagent/internal/camera/fault"
	"github.com/ManuGH/camagent/internal/camera/state"
	xglog "github.com/ManuGH/camagent/internal/log"
	"github.com/ManuGH/camagent/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultCapacity is the queue bound used when Options.Capacity is unset.
const DefaultCapacity = 256

// Worker is the goroutine jobs hand their work to.
type Worker interface {
	// Sync blocks until everything posted before the call has been processed.
	Sync(timeout time.Duration) error
}

// Options configures a Thread.
type Options struct {
	// Name labels logs and metrics (normally the backend name).
	Name     string
	Capacity int
	// Timeout bounds SubmitAndWait and the worker handoff after each job.
	Timeout time.Duration
	// Worker is synced after every job; nil disables the handoff.
	Worker Worker
	// OnFailure receives job panics and handoff timeouts.
	OnFailure func(err error)
	Logger    zerolog.Logger
}

type entry struct {
	run func()
	// unlock marks the companion job appended by SubmitAndWait.
	unlock bool
}

// Thread is the dispatch goroutine and its bounded FIFO queue.
type Thread struct {
	opts Options

	mu      sync.Mutex
	jobs    chan entry
	started bool
	ended   bool
	done    chan struct{}
}

// New creates a dispatch thread. Jobs may be submitted before Start; they
// run once the goroutine is started.
func New(opts Options) *Thread {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Timeout <= 0 {
		opts.Timeout = state.DefaultTimeout
	}
	if opts.Name == "" {
		opts.Name = "camera"
	}
	return &Thread{
		opts: opts,
		jobs: make(chan entry, opts.Capacity),
		done: make(chan struct{}),
	}
}

// Start launches the dispatch goroutine. Calling it twice is a no-op.
func (t *Thread) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startLocked()
}

func (t *Thread) startLocked() {
	if t.started {
		return
	}
	t.started = true
	t.opts.Logger.Debug().
		Int(xglog.FieldCapacity, t.opts.Capacity).
		Dur("timeout", t.opts.Timeout).
		Msg("starting dispatch thread")
	go t.loop()
}

// Submit enqueues job without waiting for it.
func (t *Thread) Submit(job func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enqueueLocked(entry{run: job})
}

// SubmitAndWait enqueues job followed by a companion unlock job and blocks
// until the unlock job has run, which implies job ran and the worker drained
// what job posted. It returns an error wrapping ErrWaitTimeout when the
// operation timeout elapses first.
func (t *Thread) SubmitAndWait(job func()) error {
	unlocked := make(chan struct{})

	t.mu.Lock()
	if err := t.checkLocked(2); err != nil {
		t.mu.Unlock()
		return err
	}
	_ = t.enqueueLocked(entry{run: job})
	_ = t.enqueueLocked(entry{run: func() { close(unlocked) }, unlock: true})
	t.mu.Unlock()

	timer := time.NewTimer(t.opts.Timeout)
	defer timer.Stop()

	select {
	case <-unlocked:
		return nil
	case <-timer.C:
		metrics.IncDispatchWaitTimeout(t.opts.Name)
		t.opts.Logger.Error().
			Dur("timeout", t.opts.Timeout).
			Int(xglog.FieldQueueDepth, len(t.jobs)).
			Msg("timed out waiting for dispatch job")
		return fmt.Errorf("%w after %s", ErrWaitTimeout, t.opts.Timeout)
	}
}

// Stop ends the queue: new submissions fail, already queued jobs still run.
// It blocks until the goroutine has drained the queue and exited.
func (t *Thread) Stop() {
	t.mu.Lock()
	if !t.ended {
		t.ended = true
		close(t.jobs)
		t.startLocked()
	}
	t.mu.Unlock()
	<-t.done
}

// Ended reports whether Stop has been called.
func (t *Thread) Ended() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ended
}

// Depth returns the number of queued jobs.
func (t *Thread) Depth() int {
	return len(t.jobs)
}

func (t *Thread) checkLocked(n int) error {
	if t.ended {
		metrics.IncDispatchRejection(t.opts.Name, "ended")
		return ErrDispatchEnded
	}
	if len(t.jobs)+n > cap(t.jobs) {
		metrics.IncDispatchRejection(t.opts.Name, "full")
		t.opts.Logger.Error().
			Int(xglog.FieldCapacity, cap(t.jobs)).
			Msg("dispatch queue full")
		return fmt.Errorf("%w (capacity %d)", ErrQueueFull, cap(t.jobs))
	}
	return nil
}

// enqueueLocked never blocks: the capacity check runs under the same lock
// and the consumer only ever shrinks the queue.
func (t *Thread) enqueueLocked(e entry) error {
	if err := t.checkLocked(1); err != nil {
		return err
	}
	t.jobs <- e
	metrics.SetDispatchQueueDepth(t.opts.Name, len(t.jobs))
	return nil
}

func (t *Thread) loop() {
	defer close(t.done)
	for e := range t.jobs {
		metrics.SetDispatchQueueDepth(t.opts.Name, len(t.jobs))
		start := time.Now()

		t.run(e.run)
		if !e.unlock && t.opts.Worker != nil {
			if err := t.opts.Worker.Sync(t.opts.Timeout); err != nil {
				t.fail(fmt.Errorf("worker handoff: %w", err))
			}
		}

		metrics.ObserveDispatchJob(t.opts.Name, time.Since(start).Seconds())
	}
	t.opts.Logger.Debug().Msg("dispatch thread ended")
}

func (t *Thread) run(job func()) {
	defer func() {
		if r := recover(); r != nil {
			t.fail(fault.FromPanic(r))
		}
	}()
	if job != nil {
		job()
	}
}

func (t *Thread) fail(err error) {
	t.opts.Logger.Error().Err(err).Msg("dispatch job failed")
	if t.opts.OnFailure != nil {
		t.opts.OnFailure(err)
	}
}
