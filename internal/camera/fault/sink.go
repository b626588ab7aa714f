// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package fault

import (
	"strconv"
	"sync"

	"github.com/ManuGH/camagent/internal/camera/executor"
	xglog "github.com/ManuGH/camagent/internal/log"
	"github.com/ManuGH/camagent/internal/metrics"
	"github.com/rs/zerolog"
)

// Handler receives faults on the sink's executor.
type Handler interface {
	HandleFault(f *Fault)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(f *Fault)

// HandleFault implements Handler.
func (fn HandlerFunc) HandleFault(f *Fault) { fn(f) }

// goExecutor runs each task on a fresh goroutine, so an unhandled fault
// panic is never recovered by a camera loop.
var goExecutor = executor.Func(func(fn func()) { go fn() })

// Sink is the exception handler shared by an agent's worker and dispatch goroutine.
type Sink struct {
	agent  string
	logger zerolog.Logger

	mu      sync.RWMutex
	handler Handler
	ex      executor.Executor
}

// NewSink creates a sink for the named agent with no handler installed.
func NewSink(agent string, logger zerolog.Logger) *Sink {
	return &Sink{
		agent:  agent,
		logger: logger,
		ex:     goExecutor,
	}
}

// SetHandler installs h, delivered on ex. A nil ex selects a fresh goroutine
// per fault; a nil h restores the fail-fast default.
func (s *Sink) SetHandler(h Handler, ex executor.Executor) {
	if ex == nil {
		ex = goExecutor
	}
	s.mu.Lock()
	s.handler = h
	s.ex = ex
	s.mu.Unlock()
}

// CameraError reports an asynchronous device error code.
func (s *Sink) CameraError(code int) {
	f := newFault(s.agent, KindCameraError)
	f.Code = code
	metrics.IncDeviceError(s.agent, strconv.Itoa(code))
	s.report(f)
}

// CameraException reports a failure contained by the device worker, with the
// history trail, the action being processed and the state at the time.
func (s *Sink) CameraException(err error, history, action, state string) {
	f := newFault(s.agent, KindCameraException)
	f.Err = err
	f.History = history
	f.Action = action
	f.State = state
	s.report(f)
}

// DispatchException reports a failure on the dispatch goroutine.
func (s *Sink) DispatchException(err error) {
	f := newFault(s.agent, KindDispatchFailure)
	f.Err = err
	s.report(f)
}

func (s *Sink) report(f *Fault) {
	s.mu.RLock()
	h, ex := s.handler, s.ex
	s.mu.RUnlock()

	s.logger.Error().
		Err(f.Err).
		Str(xglog.FieldFaultID, f.ID).
		Str("kind", string(f.Kind)).
		Int("code", f.Code).
		Str(xglog.FieldAction, f.Action).
		Str(xglog.FieldState, f.State).
		Str(xglog.FieldHistory, f.History).
		Msg("camera fault")

	task := func() { panic(f) }
	if h != nil {
		task = func() { h.HandleFault(f) }
	}
	if !ex.Post(task) {
		s.logger.Error().
			Str(xglog.FieldFaultID, f.ID).
			Msg("fault executor rejected report, failing fast")
		panic(f)
	}
}
