// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/camagent/internal/camera/device"
	"github.com/ManuGH/camagent/internal/camera/state"
	xglog "github.com/ManuGH/camagent/internal/log"
)

func (w *Worker) handle(ctx context.Context, msg Message) error {
	switch msg.Action {
	case ActionOpen:
		return w.open(ctx, msg.Arg0, msg.Payload.(openArgs))
	case ActionReconnect:
		return w.open(ctx, w.index, msg.Payload.(openArgs))
	case ActionRelease:
		w.release()
		return nil
	case ActionUnlock:
		return w.unlock(ctx)
	case ActionLock:
		return w.lock(ctx)
	case ActionApplySettings:
		return w.applySettings(ctx, msg.Payload.(device.Settings))
	case ActionRefreshSettings:
		return w.refreshSettings(ctx)
	case ActionSetPreviewTarget:
		target, _ := msg.Payload.(device.Target)
		return w.setPreviewTarget(ctx, target)
	case ActionStartPreview:
		return w.startPreview(ctx, msg.Payload.(previewArgs))
	case ActionStopPreview:
		if !w.ladder.Get().AtLeast(state.PreviewActive) {
			return w.drop(msg.Action, "preview not active")
		}
		return w.stopPreview(ctx)
	case ActionAutoFocus:
		return w.autoFocus(ctx, msg.Payload.(focusArgs))
	case ActionCancelAutoFocus:
		return w.cancelAutoFocus(ctx)
	case ActionCancelAutoFocusFinish:
		if w.pendingCancel > 0 {
			w.pendingCancel--
		}
		return nil
	case ActionCapture:
		return w.takePicture(ctx, msg.Payload.(captureArgs))
	case actionResult:
		return w.onResult(ctx, msg.Payload.(device.Result))
	case actionCaptureEvent:
		w.onCaptureEvent(msg.Payload.(device.CaptureEvent))
		return nil
	case actionCaptureTimeout:
		return w.onCaptureTimeout(ctx, msg.Payload.(captureTimeout))
	default:
		return fmt.Errorf("unknown action %s", msg.Action)
	}
}

func (w *Worker) open(ctx context.Context, index int, args openArgs) error {
	cb := args.cb
	if w.ladder.Get() != state.Unopened {
		if cb.OnAlreadyOpen != nil {
			hist := w.hist.String()
			w.deliver(args.ex, "open_already", func() { cb.OnAlreadyOpen(index, hist) })
		}
		return w.drop(ActionOpen, "already open")
	}
	if index < 0 {
		if cb.OnFailure != nil {
			hist := w.hist.String()
			w.deliver(args.ex, "open_failure", func() { cb.OnFailure(index, ErrNeverOpened, hist) })
		}
		return nil
	}

	w.gen++
	h, err := w.driver.Open(ctx, index, events{w: w, gen: w.gen})
	if err != nil {
		hist := w.hist.String()
		w.logger.Warn().Err(err).Int(xglog.FieldCameraID, index).Msg("camera open failed")
		switch {
		case errors.Is(err, device.ErrDisabled):
			if cb.OnDisabled != nil {
				w.deliver(args.ex, "open_disabled", func() { cb.OnDisabled(index, hist) })
			}
		default:
			if cb.OnFailure != nil {
				w.deliver(args.ex, "open_failure", func() { cb.OnFailure(index, err, hist) })
			}
		}
		return nil
	}

	w.dev = h
	w.index = index
	w.legacy = h.Info().Legacy
	w.flashForced = false
	w.lastAE = device.AEInactive
	w.lastAEFrame = 0
	w.clearSettings()

	w.activity.Set(state.Idle)
	w.ladder.Set(state.Unconfigured)
	w.logger.Info().Int(xglog.FieldCameraID, index).Bool("legacy", w.legacy).Msg("camera opened")

	if cb.OnOpened != nil {
		w.deliver(args.ex, "opened", func() { cb.OnOpened(index) })
	}
	return nil
}

func (w *Worker) release() {
	w.releaseDevice()
	w.activity.Set(state.ActivityUnopened)
	w.ladder.Set(state.Unopened)
}

// releaseDevice drops the handle exactly once. Events from the released
// handle are discarded by the generation check.
func (w *Worker) releaseDevice() {
	if w.releasing || w.dev == nil {
		return
	}
	w.releasing = true
	defer func() { w.releasing = false }()

	h := w.dev
	w.dev = nil
	w.gen++
	w.target = nil
	w.clearSlots()
	w.clearSettings()
	if err := h.Release(); err != nil {
		w.logger.Warn().Err(err).Int(xglog.FieldCameraID, w.index).Msg("camera release failed")
	}
}

func (w *Worker) applySettings(ctx context.Context, s device.Settings) error {
	if !state.Opened.Contains(w.ladder.Get()) {
		return w.drop(ActionApplySettings, "not opened")
	}
	if w.activity.Get() == state.Capturing {
		return w.drop(ActionApplySettings, "capturing")
	}
	if err := w.dev.Configure(ctx, s); err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	w.flashForced = s.FlashForced()
	w.clearSettings()
	if w.ladder.Get() == state.Unconfigured {
		w.ladder.Set(state.Configured)
	}
	return nil
}

// refreshSettings fills the cache from the device if it is empty.
func (w *Worker) refreshSettings(ctx context.Context) error {
	if w.dev == nil {
		return w.drop(ActionRefreshSettings, "not opened")
	}
	if _, ok := w.CachedSettings(); ok {
		return nil
	}
	s, err := w.dev.CurrentSettings(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("reading camera settings failed")
		return nil
	}
	w.settingsMu.Lock()
	w.settings = &s
	w.settingsMu.Unlock()
	return nil
}

func (w *Worker) setPreviewTarget(ctx context.Context, target device.Target) error {
	cur := w.ladder.Get()
	if !cur.AtLeast(state.Configured) {
		return w.drop(ActionSetPreviewTarget, "not configured")
	}
	if cur.AtLeast(state.PreviewActive) {
		if err := w.stopPreview(ctx); err != nil {
			return err
		}
	}
	if err := w.dev.AttachPreviewTarget(ctx, target); err != nil {
		return fmt.Errorf("attach preview target: %w", err)
	}
	w.target = target
	if target == nil {
		w.ladder.Set(state.Configured)
		return nil
	}
	w.ladder.Set(state.PreviewReady)
	return nil
}

func (w *Worker) startPreview(ctx context.Context, args previewArgs) error {
	if w.ladder.Get() != state.PreviewReady {
		return w.drop(ActionStartPreview, "preview not ready")
	}
	if err := w.dev.StartRepeatingPreview(ctx); err != nil {
		return fmt.Errorf("start preview: %w", err)
	}
	if args.onStarted != nil {
		w.preview = &previewSlot{request: w.nextRequest(), args: args}
	}
	w.ladder.Set(state.PreviewActive)
	return nil
}

func (w *Worker) stopPreview(ctx context.Context) error {
	if err := w.dev.StopRepeatingPreview(ctx); err != nil {
		return fmt.Errorf("stop preview: %w", err)
	}
	w.preview = nil
	w.focus = nil
	w.abortCapture(fmt.Errorf("%w: preview stopped", ErrCaptureAborted))
	if w.activity.Get() == state.Focusing {
		w.activity.Set(state.Idle)
	}
	w.ladder.Set(state.PreviewReady)
	return nil
}

func (w *Worker) autoFocus(ctx context.Context, args focusArgs) error {
	if w.pendingCancel > 0 {
		return w.drop(ActionAutoFocus, "cancel pending")
	}
	if !w.ladder.Get().AtLeast(state.PreviewActive) {
		return w.drop(ActionAutoFocus, "preview not active")
	}
	switch w.activity.Get() {
	case state.Capturing, state.Unlocked:
		return w.drop(ActionAutoFocus, "sensor busy")
	}
	if err := w.dev.TriggerAutoFocus(ctx); err != nil {
		return fmt.Errorf("trigger autofocus: %w", err)
	}
	w.focus = &focusSlot{request: w.nextRequest(), args: args}
	w.activity.Set(state.Focusing)
	w.ladder.Set(state.FocusLocked)
	return nil
}

// cancelAutoFocus runs ahead of queued work. It always counts as a pending
// cancel so that any autofocus queued before it is dropped until the
// matching finish message.
func (w *Worker) cancelAutoFocus(ctx context.Context) error {
	w.pendingCancel++
	w.focus = nil
	if w.dev == nil || !w.ladder.Get().AtLeast(state.PreviewActive) {
		return nil
	}
	if err := w.dev.CancelAutoFocus(ctx); err != nil {
		return fmt.Errorf("cancel autofocus: %w", err)
	}
	if w.activity.Get() == state.Focusing {
		w.activity.Set(state.Idle)
	}
	if w.ladder.Get() == state.FocusLocked {
		w.ladder.Set(state.PreviewActive)
	}
	return nil
}

func (w *Worker) takePicture(ctx context.Context, args captureArgs) error {
	if !w.ladder.Get().AtLeast(state.PreviewActive) {
		return w.rejectCapture(args, "preview not active")
	}
	switch w.activity.Get() {
	case state.Capturing:
		return w.rejectCapture(args, "capture in progress")
	case state.Unlocked:
		return w.rejectCapture(args, "sensor unlocked")
	case state.Focusing:
		// A capture supersedes focusing; the pending focus request reports failure.
		if f := w.focus; f != nil {
			w.focus = nil
			if f.args.cb != nil {
				w.deliver(f.args.ex, "focus", func() { f.args.cb(false) })
			}
		}
	}

	slot := &captureSlot{request: w.nextRequest(), args: args}
	w.capture = slot
	w.activity.Set(state.Capturing)

	if w.legacy || (w.lastAE == device.AEConverged && !w.flashForced) {
		return w.captureStill(ctx, slot)
	}

	if err := w.dev.TriggerPrecapture(ctx); err != nil {
		return fmt.Errorf("trigger precapture: %w", err)
	}
	w.armCapture(slot, phasePrecapture)
	return nil
}

// captureStill takes the picture. The JPEG must arrive within the operation
// timeout.
func (w *Worker) captureStill(ctx context.Context, slot *captureSlot) error {
	w.armCapture(slot, phaseCapturing)
	if err := w.dev.CaptureStill(ctx); err != nil {
		return fmt.Errorf("capture still: %w", err)
	}
	return nil
}

// armCapture enters phase and bounds it with the operation timeout.
func (w *Worker) armCapture(slot *captureSlot, phase capturePhase) {
	slot.stopTimer()
	slot.phase = phase
	tag, gen := captureTimeout{id: slot.id, phase: phase}, w.gen
	slot.timer = time.AfterFunc(w.timeout, func() {
		w.Post(Message{Action: actionCaptureTimeout, Payload: tag, gen: gen})
	})
}

func (w *Worker) rejectCapture(args captureArgs, reason string) error {
	if fn := args.cb.OnFailure; fn != nil {
		err := fmt.Errorf("%w: %s", ErrCaptureRejected, reason)
		w.deliver(args.ex, "capture_failure", func() { fn(err) })
	}
	return w.drop(ActionCapture, reason)
}

// abortCapture ends a pending capture without a JPEG and frees the sensor.
func (w *Worker) abortCapture(err error) {
	if w.capture == nil {
		return
	}
	w.endCapture(err)
	if w.activity.Get() == state.Capturing {
		w.activity.Set(state.Idle)
	}
}

// endCapture clears the capture slot and reports err to its caller.
func (w *Worker) endCapture(err error) {
	c := w.capture
	if c == nil {
		return
	}
	c.stopTimer()
	w.capture = nil
	w.logger.Warn().Err(err).Msg("capture ended without a picture")
	if fn := c.args.cb.OnFailure; fn != nil {
		w.deliver(c.args.ex, "capture_failure", func() { fn(err) })
	}
}

func (w *Worker) onResult(ctx context.Context, r device.Result) error {
	if r.Frame > w.lastFrame {
		w.lastFrame = r.Frame
	}
	if r.Frame >= w.lastAEFrame {
		w.lastAE = r.AE
		w.lastAEFrame = r.Frame
	}

	if p := w.preview; p != nil && p.accept(r.Frame) {
		w.preview = nil
		w.deliver(p.args.ex, "preview_started", p.args.onStarted)
	}

	if f := w.focus; f != nil && f.accept(r.Frame) && r.AF.Locked() {
		w.focus = nil
		if w.activity.Get() == state.Focusing {
			w.activity.Set(state.Idle)
		}
		if f.args.cb != nil {
			focused := r.AF == device.AFFocusedLocked
			w.deliver(f.args.ex, "focus", func() { f.args.cb(focused) })
		}
	}

	if c := w.capture; c != nil && c.phase == phasePrecapture && c.accept(r.Frame) && r.AE.Settled() {
		if !w.ladder.Get().AtLeast(state.PreviewActive) {
			w.abortCapture(fmt.Errorf("%w: preview not active", ErrCaptureAborted))
			return nil
		}
		return w.captureStill(ctx, c)
	}
	return nil
}

// onCaptureTimeout captures anyway when exposure never settled, and gives
// up when the still itself never arrived.
func (w *Worker) onCaptureTimeout(ctx context.Context, tag captureTimeout) error {
	c := w.capture
	if c == nil || c.id != tag.id || c.phase != tag.phase {
		return nil
	}
	if c.phase == phaseCapturing {
		w.abortCapture(fmt.Errorf("%w after %s", ErrCaptureTimeout, w.timeout))
		return nil
	}
	if !w.ladder.Get().AtLeast(state.PreviewActive) {
		w.abortCapture(fmt.Errorf("%w: preview not active", ErrCaptureAborted))
		return nil
	}
	w.logger.Warn().Dur("timeout", w.timeout).Msg("exposure did not settle, capturing anyway")
	return w.captureStill(ctx, c)
}

func (w *Worker) onCaptureEvent(ev device.CaptureEvent) {
	c := w.capture
	if c == nil {
		w.logger.Debug().Str("kind", ev.Kind.String()).Msg("capture event without request")
		return
	}
	cb, ex := c.args.cb, c.args.ex
	data := ev.Data
	switch ev.Kind {
	case device.CaptureShutter:
		if cb.Shutter != nil {
			w.deliver(ex, "shutter", cb.Shutter)
		}
	case device.CaptureRaw:
		if cb.Raw != nil {
			w.deliver(ex, "raw", func() { cb.Raw(data) })
		}
	case device.CapturePostview:
		if cb.Postview != nil {
			w.deliver(ex, "postview", func() { cb.Postview(data) })
		}
	case device.CaptureJPEG:
		c.stopTimer()
		w.capture = nil
		if w.activity.Get() == state.Capturing {
			w.activity.Set(state.Idle)
		}
		if cb.JPEG != nil {
			w.deliver(ex, "jpeg", func() { cb.JPEG(data) })
		}
	}
}

func (w *Worker) unlock(ctx context.Context) error {
	if w.dev == nil || w.activity.Get() != state.Idle {
		return w.drop(ActionUnlock, "sensor not idle")
	}
	l, ok := w.dev.(device.Locker)
	if !ok {
		return w.drop(ActionUnlock, "backend cannot lend the sensor")
	}
	if err := l.Unlock(ctx); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	w.activity.Set(state.Unlocked)
	return nil
}

func (w *Worker) lock(ctx context.Context) error {
	if w.dev == nil || w.activity.Get() != state.Unlocked {
		return w.drop(ActionLock, "sensor not unlocked")
	}
	l, ok := w.dev.(device.Locker)
	if !ok {
		return w.drop(ActionLock, "backend cannot lend the sensor")
	}
	if err := l.Lock(ctx); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	w.activity.Set(state.Idle)
	return nil
}
