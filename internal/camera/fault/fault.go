// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package fault reports unrecoverable camera failures.
//
// The device worker and the dispatch goroutine never let a failure unwind
// past their loop; they hand it to a Sink, which redispatches it onto an
// executor. Without an installed Handler the sink panics there: a corrupted
// shared device must crash the embedding process loudly rather than be
// swallowed.
package fault

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a fault by where it originated.
type Kind string

const (
	KindCameraError     Kind = "camera_error"
	KindCameraException Kind = "camera_exception"
	KindDispatchFailure Kind = "dispatch_exception"
)

// Kinds lists every fault kind.
func Kinds() []Kind {
	return []Kind{KindCameraError, KindCameraException, KindDispatchFailure}
}

// Fault is one reported failure with its diagnostic context.
type Fault struct {
	ID      string
	Agent   string
	Kind    Kind
	Code    int
	Err     error
	History string
	Action  string
	State   string
	At      time.Time
}

func (f *Fault) Error() string {
	switch f.Kind {
	case KindCameraError:
		return fmt.Sprintf("camera %s: device error %d", f.Agent, f.Code)
	case KindCameraException:
		return fmt.Sprintf("camera %s: %s failed in state %s: %v", f.Agent, f.Action, f.State, f.Err)
	default:
		return fmt.Sprintf("camera %s: dispatch failure: %v", f.Agent, f.Err)
	}
}

// Unwrap exposes the underlying cause.
func (f *Fault) Unwrap() error {
	return f.Err
}

func newFault(agent string, kind Kind) *Fault {
	return &Fault{
		ID:    uuid.NewString(),
		Agent: agent,
		Kind:  kind,
		At:    time.Now(),
	}
}

// PanicError wraps a value recovered from a panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the recovered value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// FromPanic converts a recovered value into an error carrying the stack.
func FromPanic(r any) error {
	return &PanicError{Value: r, Stack: debug.Stack()}
}

// IsPanic reports whether err originated from a recovered panic.
func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}
