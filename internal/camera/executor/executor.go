// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package executor provides the execution contexts camera callbacks are
// delivered on. The device worker never calls client code directly; it posts
// the call to the Executor the client supplied.
package executor

// Executor runs posted functions on a context owned by the caller.
type Executor interface {
	// Post schedules fn. It reports false if fn was not accepted.
	Post(fn func()) bool
}

// Func adapts a plain function to Executor.
type Func func(fn func())

// Post implements Executor.
func (f Func) Post(fn func()) bool {
	f(fn)
	return true
}

// Deliver posts fn on ex. Nil callbacks are skipped, nil executors reject.
func Deliver(ex Executor, fn func()) bool {
	if fn == nil {
		return true
	}
	if ex == nil {
		return false
	}
	return ex.Post(fn)
}
