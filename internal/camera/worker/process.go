// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/camagent/internal/camera/executor"
	"github.com/ManuGH/camagent/internal/camera/fault"
	"github.com/ManuGH/camagent/internal/camera/state"
	xglog "github.com/ManuGH/camagent/internal/log"
	"github.com/ManuGH/camagent/internal/metrics"
	"github.com/ManuGH/camagent/internal/telemetry"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// errDropped marks an action rejected by the admission gate.
var errDropped = errors.New("action dropped")

const (
	outcomeOK      = "ok"
	outcomeDropped = "dropped"
	outcomeFault   = "fault"
	outcomeInvalid = "invalid"
)

func (w *Worker) process(msg Message) {
	if done, ok := msg.Payload.(chan struct{}); ok && done != nil && msg.Action == ActionCancelAutoFocus {
		defer close(done)
	}

	switch msg.Action {
	case actionBarrier:
		close(msg.Payload.(chan struct{}))
		return
	case actionDeviceError:
		if msg.gen == w.gen && w.dev != nil {
			w.abortCapture(fmt.Errorf("%w: device error %d", ErrCaptureAborted, msg.Arg0))
			w.sink.CameraError(msg.Arg0)
		}
		return
	case actionResult, actionCaptureEvent, actionCaptureTimeout:
		if msg.gen != w.gen || w.dev == nil {
			return
		}
		w.guard(msg)
		return
	}

	w.hist.add(msg.Action)
	if w.ladder.Invalid() {
		metrics.IncWorkerAction(w.name, msg.Action.String(), outcomeInvalid)
		w.rejectInvalid(msg)
		return
	}
	w.guard(msg)
}

// guard runs one message under a recover boundary and a trace span.
func (w *Worker) guard(msg Message) {
	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()

	action := msg.Action.String()
	span := trace.SpanFromContext(ctx)
	if !msg.Action.internal() {
		ctx, span = w.tracer.Start(ctx, "camera.worker/"+action,
			trace.WithAttributes(telemetry.ActionAttributes(
				w.name, action, w.ladder.Get().String(), w.activity.Get().String())...))
		defer span.End()
	}

	outcome := outcomeOK
	err := w.safely(ctx, msg)
	switch {
	case err == nil:
	case errors.Is(err, errDropped):
		outcome = outcomeDropped
	default:
		outcome = outcomeFault
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		w.fail(msg.Action, err)
	}
	if !msg.Action.internal() {
		metrics.IncWorkerAction(w.name, action, outcome)
	}
}

func (w *Worker) safely(ctx context.Context, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fault.FromPanic(r)
		}
	}()
	return w.handle(ctx, msg)
}

// fail contains a fault: release the handle, apply the policy and report.
func (w *Worker) fail(action Action, err error) {
	ladder := w.ladder.Get()
	if !w.releasing {
		w.releaseDevice()
	}

	w.activity.Set(state.ActivityUnopened)
	w.ladder.Set(state.Unopened)
	if w.policy == PolicyInvalidate {
		w.activity.Invalidate()
		w.ladder.Invalidate()
	}
	metrics.IncWorkerFault(w.name, string(w.policy))

	w.logger.Error().
		Err(err).
		Str(xglog.FieldAction, action.String()).
		Str(xglog.FieldState, ladder.String()).
		Str("policy", string(w.policy)).
		Msg("device worker fault")
	w.sink.CameraException(err, w.hist.String(), action.String(), ladder.String())
}

// rejectInvalid answers callers that wait on a callback; everything else is
// silently skipped.
func (w *Worker) rejectInvalid(msg Message) {
	switch msg.Action {
	case ActionOpen, ActionReconnect:
		args, _ := msg.Payload.(openArgs)
		if args.cb.OnFailure != nil {
			hist := w.hist.String()
			w.deliver(args.ex, "open_failure", func() { args.cb.OnFailure(msg.Arg0, ErrInvalidated, hist) })
		}
	case ActionCapture:
		args, _ := msg.Payload.(captureArgs)
		if fn := args.cb.OnFailure; fn != nil {
			w.deliver(args.ex, "capture_failure", func() { fn(ErrInvalidated) })
		}
	}
}

// drop logs and counts an admission violation.
func (w *Worker) drop(action Action, reason string) error {
	ladder := w.ladder.Get()
	metrics.IncAdmissionDrop(w.name, action.String(), ladder.String())
	w.dropLog.Do(func() {
		w.logger.Warn().
			Str(xglog.FieldAction, action.String()).
			Str(xglog.FieldState, ladder.String()).
			Str(xglog.FieldActivity, w.activity.Get().String()).
			Str("reason", reason).
			Msg("action not admitted in current state")
	})
	return errDropped
}

// deliver hands fn to the caller's executor. The worker never runs client code itself.
func (w *Worker) deliver(ex executor.Executor, kind string, fn func()) {
	ok := executor.Deliver(ex, fn)
	metrics.IncCallback(w.name, kind, ok)
	if !ok {
		w.logger.Warn().Str("callback", kind).Msg("callback executor rejected delivery")
	}
}

func (w *Worker) nextRequest() request {
	w.seq++
	return request{id: w.seq, after: w.lastFrame}
}

func (w *Worker) clearSettings() {
	w.settingsMu.Lock()
	w.settings = nil
	w.settingsMu.Unlock()
}

func (w *Worker) clearSlots() {
	w.focus = nil
	w.preview = nil
	w.endCapture(fmt.Errorf("%w: camera released", ErrCaptureAborted))
}
