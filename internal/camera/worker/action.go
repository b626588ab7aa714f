// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package worker

import (
	"fmt"

	"github.com/ManuGH/camagent/internal/camera/device"
	"github.com/ManuGH/camagent/internal/camera/executor"
)

// Action tags a message. The numeric codes appear in history trails.
type Action int

const (
	ActionOpen      Action = 1
	ActionRelease   Action = 2
	ActionReconnect Action = 3
	ActionUnlock    Action = 4
	ActionLock      Action = 5

	ActionSetPreviewTarget Action = 101
	ActionStartPreview     Action = 102
	ActionStopPreview      Action = 103

	ActionApplySettings   Action = 204
	ActionRefreshSettings Action = 205

	ActionAutoFocus             Action = 301
	ActionCancelAutoFocus       Action = 302
	ActionCancelAutoFocusFinish Action = 305

	ActionCapture Action = 601
)

// Internal messages: device events reposted onto the worker goroutine and
// queue barriers. They are not recorded in the history.
const (
	actionResult Action = 900 + iota
	actionCaptureEvent
	actionDeviceError
	actionCaptureTimeout
	actionBarrier
)

func (a Action) String() string {
	switch a {
	case ActionOpen:
		return "open"
	case ActionRelease:
		return "release"
	case ActionReconnect:
		return "reconnect"
	case ActionUnlock:
		return "unlock"
	case ActionLock:
		return "lock"
	case ActionSetPreviewTarget:
		return "set_preview_target"
	case ActionStartPreview:
		return "start_preview"
	case ActionStopPreview:
		return "stop_preview"
	case ActionApplySettings:
		return "apply_settings"
	case ActionRefreshSettings:
		return "refresh_settings"
	case ActionAutoFocus:
		return "auto_focus"
	case ActionCancelAutoFocus:
		return "cancel_auto_focus"
	case ActionCancelAutoFocusFinish:
		return "cancel_auto_focus_finish"
	case ActionCapture:
		return "capture"
	case actionResult:
		return "result"
	case actionCaptureEvent:
		return "capture_event"
	case actionDeviceError:
		return "device_error"
	case actionCaptureTimeout:
		return "capture_timeout"
	case actionBarrier:
		return "barrier"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

func (a Action) internal() bool {
	return a >= actionResult
}

// Message is one unit of worker input. Each message has at most one
// device-mutating effect.
type Message struct {
	Action Action
	Arg0   int
	Arg1   int
	// Payload carries the action argument; see the constructors below.
	Payload any

	// gen is the handle generation internal event messages belong to.
	gen uint64
}

// OpenCallbacks receives the outcome of an open or reconnect. Failure variants
// carry the history trail.
type OpenCallbacks struct {
	OnOpened      func(index int)
	OnAlreadyOpen func(index int, history string)
	OnDisabled    func(index int, history string)
	OnFailure     func(index int, err error, history string)
}

// CaptureCallbacks receives still-capture progress. Every field is optional.
type CaptureCallbacks struct {
	Shutter  func()
	Raw      func(data []byte)
	Postview func(data []byte)
	JPEG     func(data []byte)
	// OnFailure reports a capture that will not produce a JPEG.
	OnFailure func(err error)
}

type openArgs struct {
	ex executor.Executor
	cb OpenCallbacks
}

type previewArgs struct {
	ex        executor.Executor
	onStarted func()
}

type focusArgs struct {
	ex executor.Executor
	cb func(focused bool)
}

type captureArgs struct {
	ex executor.Executor
	cb CaptureCallbacks
}

// OpenMessage opens camera index.
func OpenMessage(index int, ex executor.Executor, cb OpenCallbacks) Message {
	return Message{Action: ActionOpen, Arg0: index, Payload: openArgs{ex: ex, cb: cb}}
}

// ReconnectMessage reopens the last successfully opened index.
func ReconnectMessage(ex executor.Executor, cb OpenCallbacks) Message {
	return Message{Action: ActionReconnect, Payload: openArgs{ex: ex, cb: cb}}
}

// ApplySettingsMessage configures the device. s must not be shared with the caller.
func ApplySettingsMessage(s device.Settings) Message {
	return Message{Action: ActionApplySettings, Payload: s}
}

// SetPreviewTargetMessage attaches target; nil detaches.
func SetPreviewTargetMessage(target device.Target) Message {
	return Message{Action: ActionSetPreviewTarget, Payload: target}
}

// StartPreviewMessage starts the repeating preview; onStarted fires on the
// first preview frame.
func StartPreviewMessage(ex executor.Executor, onStarted func()) Message {
	return Message{Action: ActionStartPreview, Payload: previewArgs{ex: ex, onStarted: onStarted}}
}

// AutoFocusMessage triggers autofocus; cb receives whether focus locked.
func AutoFocusMessage(ex executor.Executor, cb func(focused bool)) Message {
	return Message{Action: ActionAutoFocus, Payload: focusArgs{ex: ex, cb: cb}}
}

// CaptureMessage takes one still picture.
func CaptureMessage(ex executor.Executor, cb CaptureCallbacks) Message {
	return Message{Action: ActionCapture, Payload: captureArgs{ex: ex, cb: cb}}
}

// CancelAutoFocusMessage cancels autofocus. done, if non-nil, is closed once
// the message has been processed, whatever the outcome.
func CancelAutoFocusMessage(done chan struct{}) Message {
	return Message{Action: ActionCancelAutoFocus, Payload: done}
}

// Simple builds a message without arguments.
func Simple(a Action) Message {
	return Message{Action: a}
}
