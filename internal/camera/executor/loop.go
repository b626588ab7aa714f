// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package executor

import (
	"fmt"
	"sync"
	"time"
)

// Loop is a serial executor backed by a single goroutine, the Go counterpart
// of an event loop: posted functions run one at a time in post order.
//
// A panic inside a posted function is not recovered unless a panic handler
// is installed; an unhandled panic terminates the process.
type Loop struct {
	name string

	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}

	onPanic func(name string, recovered any)
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithPanicHandler recovers panics raised by posted functions and hands them
// to fn instead of crashing the process.
func WithPanicHandler(fn func(name string, recovered any)) LoopOption {
	return func(l *Loop) { l.onPanic = fn }
}

// NewLoop starts a loop goroutine.
func NewLoop(name string, opts ...LoopOption) *Loop {
	l := &Loop{
		name: name,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.run()
	return l
}

// Name returns the loop name.
func (l *Loop) Name() string {
	return l.name
}

// Post implements Executor. Functions posted after Stop are rejected.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	// wake is closed by Stop under the same lock.
	select {
	case l.wake <- struct{}{}:
	default:
	}
	l.mu.Unlock()
	return true
}

// Flush blocks until everything posted before the call has run.
func (l *Loop) Flush(timeout time.Duration) error {
	done := make(chan struct{})
	if !l.Post(func() { close(done) }) {
		return fmt.Errorf("executor %s: stopped", l.name)
	}
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("executor %s: flush timed out after %s", l.name, timeout)
	}
}

// Stop rejects new work, runs what is already queued and waits for the
// goroutine to exit. It is safe to call more than once.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.stopped {
		l.stopped = true
		close(l.wake)
	}
	l.mu.Unlock()
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		stopped := l.stopped
		l.mu.Unlock()

		for _, fn := range batch {
			l.exec(fn)
		}

		if len(batch) > 0 {
			continue
		}
		if stopped {
			return
		}
		<-l.wake
	}
}

func (l *Loop) exec(fn func()) {
	if l.onPanic != nil {
		defer func() {
			if r := recover(); r != nil {
				l.onPanic(l.name, r)
			}
		}()
	}
	fn()
}
