// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package state

import (
	"context"
	"sync"
	"time"
)

// DefaultTimeout bounds every state wait unless a holder is built with another value.
const DefaultTimeout = 3500 * time.Millisecond

// Holder is a waitable single-value state register.
//
// Every transition happens under one mutex and closes the current broadcast
// channel, waking all waiters. The invalid latch is one-way.
type Holder[S Code] struct {
	mu      sync.Mutex
	state   S
	invalid bool
	changed chan struct{}
	timeout time.Duration

	onChange func(from, to S)
}

// NewHolder creates a holder at the initial state. A non-positive timeout
// selects DefaultTimeout.
func NewHolder[S Code](initial S, timeout time.Duration) *Holder[S] {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Holder[S]{
		state:   initial,
		changed: make(chan struct{}),
		timeout: timeout,
	}
}

// OnChange installs a hook called (outside the lock) after every transition
// that changed the value. It must be set before the holder is shared.
func (h *Holder[S]) OnChange(fn func(from, to S)) {
	h.onChange = fn
}

// Timeout returns the fixed wait bound of this holder.
func (h *Holder[S]) Timeout() time.Duration {
	return h.timeout
}

// Set replaces the state and wakes all waiters. It reports whether the value
// actually changed; waiters are notified either way.
func (h *Holder[S]) Set(s S) bool {
	h.mu.Lock()
	from := h.state
	h.state = s
	h.broadcastLocked()
	h.mu.Unlock()

	if from == s {
		return false
	}
	if h.onChange != nil {
		h.onChange(from, s)
	}
	return true
}

// Get returns the current state.
func (h *Holder[S]) Get() S {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Invalidate latches the holder invalid. There is no way back.
func (h *Holder[S]) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.invalid {
		return
	}
	h.invalid = true
	h.broadcastLocked()
}

// Invalid reports whether Invalidate has ever been called.
func (h *Holder[S]) Invalid() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.invalid
}

// WaitFor blocks until the current state is a member of set. It returns false
// when the timeout elapses, ctx is done, or the holder is invalid.
func (h *Holder[S]) WaitFor(ctx context.Context, set Set[S]) bool {
	return h.wait(ctx, func(s S) bool { return set.Contains(s) })
}

// WaitToAvoid blocks until the current state is not a member of set.
func (h *Holder[S]) WaitToAvoid(ctx context.Context, set Set[S]) bool {
	return h.wait(ctx, func(s S) bool { return !set.Contains(s) })
}

func (h *Holder[S]) wait(ctx context.Context, ok func(S) bool) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	for {
		h.mu.Lock()
		if h.invalid {
			h.mu.Unlock()
			return false
		}
		if ok(h.state) {
			h.mu.Unlock()
			return true
		}
		changed := h.changed
		h.mu.Unlock()

		select {
		case <-changed:
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func (h *Holder[S]) broadcastLocked() {
	close(h.changed)
	h.changed = make(chan struct{})
}
