// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package worker

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/camagent/internal/camera/device"
	"github.com/ManuGH/camagent/internal/camera/fault"
	"github.com/ManuGH/camagent/internal/camera/state"
	"github.com/ManuGH/camagent/internal/camera/testkit"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLadderProgression(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern"), Options{})

	r.open(t)
	assert.Equal(t, state.Idle, r.w.Activity().Get())

	r.post(t, ApplySettingsMessage(device.Settings{JPEGQuality: 90}))
	assert.Equal(t, state.Configured, r.w.Ladder().Get())

	r.post(t, SetPreviewTargetMessage(target("surface")))
	assert.Equal(t, state.PreviewReady, r.w.Ladder().Get())

	var started atomic.Int32
	r.post(t, StartPreviewMessage(inline, func() { started.Add(1) }))
	assert.Equal(t, state.PreviewActive, r.w.Ladder().Get())

	h := r.drv.Handle()
	h.Emit(device.AFInactive, device.AEConverged)
	r.settle(t)
	assert.Equal(t, int32(1), started.Load(), "preview-started fires once")

	r.post(t, Simple(ActionRelease))
	assert.Equal(t, state.Unopened, r.w.Ladder().Get())
	assert.Equal(t, state.ActivityUnopened, r.w.Activity().Get())
	assert.Equal(t, 1, h.Releases())
	assert.Empty(t, r.faults.all())
}

func TestReleaseFromAnyState(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern"), Options{})
	r.previewing(t)
	r.post(t, AutoFocusMessage(inline, nil))
	require.Equal(t, state.FocusLocked, r.w.Ladder().Get())

	r.post(t, Simple(ActionRelease), Simple(ActionRelease))
	assert.Equal(t, state.Unopened, r.w.Ladder().Get())
	assert.Equal(t, 1, r.drv.Handle().Releases())
}

func TestOpenVariants(t *testing.T) {
	t.Run("already open", func(t *testing.T) {
		r := newRig(t, testkit.NewDriver("modern"), Options{})
		r.open(t)

		var hist string
		r.post(t, OpenMessage(0, inline, OpenCallbacks{
			OnAlreadyOpen: func(_ int, h string) { hist = h },
		}))
		assert.True(t, strings.HasPrefix(hist, "HIST_ID2_1_1"), hist)
		assert.Equal(t, 1, r.drv.Opens())
	})

	t.Run("disabled", func(t *testing.T) {
		drv := testkit.NewDriver("modern")
		drv.FailOpen(0, device.ErrDisabled)
		r := newRig(t, drv, Options{})

		var disabled, failed bool
		r.post(t, OpenMessage(0, inline, OpenCallbacks{
			OnDisabled: func(int, string) { disabled = true },
			OnFailure:  func(int, error, string) { failed = true },
		}))
		assert.True(t, disabled)
		assert.False(t, failed)
		assert.Equal(t, state.Unopened, r.w.Ladder().Get())
	})

	t.Run("failure", func(t *testing.T) {
		drv := testkit.NewDriver("modern")
		drv.FailOpen(0, device.ErrInUse)
		r := newRig(t, drv, Options{})

		var got error
		r.post(t, OpenMessage(0, inline, OpenCallbacks{
			OnFailure: func(_ int, err error, _ string) { got = err },
		}))
		assert.ErrorIs(t, got, device.ErrInUse)
		assert.Empty(t, r.faults.all(), "open failures are not faults")
	})

	t.Run("reconnect reopens last index", func(t *testing.T) {
		drv := testkit.NewDriver("modern", device.Info{Index: 0}, device.Info{Index: 1})
		r := newRig(t, drv, Options{})

		var never error
		r.post(t, ReconnectMessage(inline, OpenCallbacks{
			OnFailure: func(_ int, err error, _ string) { never = err },
		}))
		assert.ErrorIs(t, never, ErrNeverOpened)

		r.post(t, OpenMessage(1, inline, OpenCallbacks{}), Simple(ActionRelease))

		opened := -1
		r.post(t, ReconnectMessage(inline, OpenCallbacks{OnOpened: func(i int) { opened = i }}))
		assert.Equal(t, 1, opened)
		assert.Equal(t, state.Unconfigured, r.w.Ladder().Get())
	})
}

func TestAdmissionViolationsAreDropped(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern"), Options{})
	r.open(t)

	r.post(t,
		StartPreviewMessage(inline, nil),
		Simple(ActionStopPreview),
		AutoFocusMessage(inline, func(bool) { t.Error("autofocus must not fire") }),
		CaptureMessage(inline, CaptureCallbacks{}),
		SetPreviewTargetMessage(target("surface")),
	)

	assert.Equal(t, state.Unconfigured, r.w.Ladder().Get())
	assert.Empty(t, filterCalls(r.drv.Calls(),
		"start_preview", "stop_preview", "trigger_autofocus", "capture_still", "attach_preview_target"))
	assert.Empty(t, r.faults.all())
}

func TestCancelAutoFocusSuppressesQueuedAutoFocus(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern"), Options{})
	r.previewing(t)

	var fired atomic.Int32
	release := r.hold(t)
	require.True(t, r.w.Post(AutoFocusMessage(inline, func(bool) { fired.Add(1) })))
	require.True(t, r.w.PostFront(Simple(ActionCancelAutoFocus)))
	require.True(t, r.w.Post(Simple(ActionCancelAutoFocusFinish)))
	release()
	r.settle(t)

	assert.LessOrEqual(t, fired.Load(), int32(1))
	assert.Equal(t, int32(0), fired.Load())
	assert.Equal(t, state.PreviewActive, r.w.Ladder().Get())
	assert.Equal(t, state.Idle, r.w.Activity().Get())
	assert.Empty(t, filterCalls(r.drv.Calls(), "trigger_autofocus"))

	// The finish marker cleared the pending cancel.
	var focused atomic.Bool
	r.post(t, AutoFocusMessage(inline, func(ok bool) { focused.Store(ok) }))
	assert.True(t, focused.Load())
	assert.Equal(t, state.FocusLocked, r.w.Ladder().Get())
}

func TestCancelAutoFocusReturnsToPreviewActive(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern").Manual(), Options{})
	r.previewing(t)

	var fired atomic.Int32
	r.post(t, AutoFocusMessage(inline, func(bool) { fired.Add(1) }))
	require.Equal(t, state.FocusLocked, r.w.Ladder().Get())
	require.Equal(t, state.Focusing, r.w.Activity().Get())

	r.post(t, Simple(ActionCancelAutoFocus), Simple(ActionCancelAutoFocusFinish))
	r.drv.Handle().Emit(device.AFFocusedLocked, device.AEConverged)
	r.settle(t)

	assert.Equal(t, state.PreviewActive, r.w.Ladder().Get())
	assert.Equal(t, state.Idle, r.w.Activity().Get())
	assert.Equal(t, int32(0), fired.Load(), "cancelled request never fires")
}

func TestAutoFocusIgnoresStaleAndRepeatedResults(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern").Manual(), Options{})
	r.previewing(t)
	h := r.drv.Handle()
	armedAt := h.Emit(device.AFInactive, device.AEConverged)
	r.settle(t)

	var results []bool
	var mu sync.Mutex
	r.post(t, AutoFocusMessage(inline, func(ok bool) {
		mu.Lock()
		results = append(results, ok)
		mu.Unlock()
	}))

	// A late partial from before the request.
	h.EmitResult(device.Result{Frame: armedAt.Frame, Partial: true, AF: device.AFFocusedLocked})
	r.settle(t)
	mu.Lock()
	assert.Empty(t, results)
	mu.Unlock()

	h.Emit(device.AFNotFocusedLocked, device.AEConverged)
	h.Emit(device.AFFocusedLocked, device.AEConverged)
	r.settle(t)

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]bool{false}, results); diff != "" {
		t.Fatalf("focus callbacks (-want +got):\n%s", diff)
	}
	assert.Equal(t, state.Idle, r.w.Activity().Get())
}

func TestCaptureConvergence(t *testing.T) {
	legacy := device.Info{Index: 0, Legacy: true}
	tests := []struct {
		name   string
		driver *testkit.Driver
		flash  device.FlashMode
		want   []string
	}{
		{
			name:   "legacy captures directly",
			driver: testkit.NewDriver("legacy", legacy),
			want:   []string{"capture_still"},
		},
		{
			name:   "legacy ignores unconverged exposure",
			driver: testkit.NewDriver("legacy", legacy).Unconverged(),
			want:   []string{"capture_still"},
		},
		{
			name:   "converged exposure skips precapture",
			driver: testkit.NewDriver("modern"),
			want:   []string{"capture_still"},
		},
		{
			name:   "forced flash needs precapture",
			driver: testkit.NewDriver("modern"),
			flash:  device.FlashOn,
			want:   []string{"trigger_precapture", "capture_still"},
		},
		{
			name:   "unconverged exposure needs precapture",
			driver: testkit.NewDriver("modern").Unconverged(),
			want:   []string{"trigger_precapture", "capture_still"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, tt.driver, Options{})
			r.open(t)
			r.post(t,
				ApplySettingsMessage(device.Settings{Flash: tt.flash}),
				SetPreviewTargetMessage(target("surface")),
				StartPreviewMessage(inline, nil),
			)

			var (
				mu     sync.Mutex
				events []string
			)
			record := func(kind string) {
				mu.Lock()
				events = append(events, kind)
				mu.Unlock()
			}
			r.post(t, CaptureMessage(inline, CaptureCallbacks{
				Shutter:  func() { record("shutter") },
				Raw:      func([]byte) { record("raw") },
				Postview: func([]byte) { record("postview") },
				JPEG:     func(b []byte) { record("jpeg:" + string(b)) },
			}))

			got := filterCalls(r.drv.Calls(), "trigger_precapture", "capture_still")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("device calls (-want +got):\n%s", diff)
			}
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, []string{"shutter", "raw", "postview", "jpeg:jpeg"}, events)
			assert.Equal(t, state.Idle, r.w.Activity().Get())
		})
	}
}

func TestCaptureInProgressIsExclusive(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern").Manual(), Options{})
	r.previewing(t)
	h := r.drv.Handle()
	h.Emit(device.AFInactive, device.AEConverged)
	r.settle(t)

	var jpegs atomic.Int32
	cb := CaptureCallbacks{JPEG: func([]byte) { jpegs.Add(1) }}
	r.post(t, CaptureMessage(inline, cb), CaptureMessage(inline, cb))
	assert.Equal(t, state.Capturing, r.w.Activity().Get())
	assert.Len(t, filterCalls(r.drv.Calls(), "capture_still"), 1)

	h.EmitCapture(device.CaptureJPEG, []byte{1})
	h.EmitCapture(device.CaptureJPEG, []byte{2})
	r.settle(t)
	assert.Equal(t, int32(1), jpegs.Load())
	assert.Equal(t, state.Idle, r.w.Activity().Get())
}

func TestPrecaptureTimeoutCapturesAnyway(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern").Manual(), Options{Timeout: 50 * time.Millisecond})
	r.previewing(t)

	r.post(t, CaptureMessage(inline, CaptureCallbacks{}))
	require.Equal(t, []string{"trigger_precapture"}, filterCalls(r.drv.Calls(), "trigger_precapture", "capture_still"))

	require.Eventually(t, func() bool {
		return len(filterCalls(r.drv.Calls(), "capture_still")) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCaptureWithoutJPEGTimesOut(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern").Manual(), Options{Timeout: 50 * time.Millisecond})
	r.previewing(t)
	r.drv.Handle().Emit(device.AFInactive, device.AEConverged)
	r.settle(t)

	failures := make(chan error, 1)
	r.post(t, CaptureMessage(inline, CaptureCallbacks{OnFailure: func(err error) { failures <- err }}))
	require.Len(t, filterCalls(r.drv.Calls(), "capture_still"), 1)

	select {
	case err := <-failures:
		assert.ErrorIs(t, err, ErrCaptureTimeout)
	case <-time.After(time.Second):
		t.Fatal("capture never gave up")
	}
	r.settle(t)
	assert.Equal(t, state.Idle, r.w.Activity().Get())
}

func TestDeviceErrorDuringCaptureFreesSensor(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern").Manual(), Options{})
	r.previewing(t)
	h := r.drv.Handle()
	h.Emit(device.AFInactive, device.AEConverged)
	r.settle(t)

	var failures []error
	cb := CaptureCallbacks{OnFailure: func(err error) { failures = append(failures, err) }}
	r.post(t, CaptureMessage(inline, cb))
	require.Equal(t, state.Capturing, r.w.Activity().Get())

	h.EmitError(7)
	r.settle(t)
	assert.Equal(t, state.Idle, r.w.Activity().Get())
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], ErrCaptureAborted)

	faults := r.faults.all()
	require.Len(t, faults, 1)
	assert.Equal(t, fault.KindCameraError, faults[0].Kind)
	assert.Equal(t, 7, faults[0].Code)

	r.post(t, Simple(ActionStopPreview), StartPreviewMessage(inline, nil), CaptureMessage(inline, cb))
	assert.Len(t, filterCalls(r.drv.Calls(), "capture_still"), 2, "a later capture reaches the device")
	assert.Len(t, failures, 1)
}

func TestStopPreviewDuringCaptureFreesSensor(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern").Manual(), Options{})
	r.previewing(t)
	r.drv.Handle().Emit(device.AFInactive, device.AEConverged)
	r.settle(t)

	var failures []error
	cb := CaptureCallbacks{OnFailure: func(err error) { failures = append(failures, err) }}
	r.post(t, CaptureMessage(inline, cb), Simple(ActionStopPreview))
	assert.Equal(t, state.PreviewReady, r.w.Ladder().Get())
	assert.Equal(t, state.Idle, r.w.Activity().Get())
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], ErrCaptureAborted)

	r.post(t, StartPreviewMessage(inline, nil), CaptureMessage(inline, cb))
	assert.Len(t, filterCalls(r.drv.Calls(), "capture_still"), 2)
	assert.Equal(t, state.Capturing, r.w.Activity().Get())
}

func TestStopPreviewDuringPrecaptureNeverCaptures(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern").Manual(), Options{Timeout: 50 * time.Millisecond})
	r.previewing(t)

	failures := make(chan error, 2)
	r.post(t,
		CaptureMessage(inline, CaptureCallbacks{OnFailure: func(err error) { failures <- err }}),
		Simple(ActionStopPreview),
	)

	assert.Never(t, func() bool {
		return len(filterCalls(r.drv.Calls(), "capture_still")) > 0
	}, 200*time.Millisecond, 10*time.Millisecond, "no still below preview_active")
	r.settle(t)

	want := []string{"trigger_precapture", "stop_preview"}
	if diff := cmp.Diff(want, filterCalls(r.drv.Calls(), "trigger_precapture", "stop_preview", "capture_still")); diff != "" {
		t.Fatalf("device calls (-want +got):\n%s", diff)
	}
	assert.Equal(t, state.PreviewReady, r.w.Ladder().Get())
	assert.Equal(t, state.Idle, r.w.Activity().Get())
	require.Len(t, failures, 1)
	assert.ErrorIs(t, <-failures, ErrCaptureAborted)
}

func TestRejectedCaptureReportsFailure(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern").Manual(), Options{})
	r.open(t)

	var got []error
	cb := CaptureCallbacks{OnFailure: func(err error) { got = append(got, err) }}
	r.post(t, CaptureMessage(inline, cb))
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0], ErrCaptureRejected)

	r.post(t,
		ApplySettingsMessage(device.Settings{}),
		SetPreviewTargetMessage(target("surface")),
		StartPreviewMessage(inline, nil),
		Simple(ActionUnlock),
		CaptureMessage(inline, cb),
	)
	require.Len(t, got, 2)
	assert.ErrorIs(t, got[1], ErrCaptureRejected)
	assert.Empty(t, filterCalls(r.drv.Calls(), "capture_still", "trigger_precapture"))
}

func TestFaultInvalidates(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern"), Options{})
	r.open(t)
	h := r.drv.Handle()
	boom := errors.New("sensor fell off")
	h.Fail("configure", boom)

	r.post(t, ApplySettingsMessage(device.Settings{}))

	faults := r.faults.all()
	require.Len(t, faults, 1)
	f := faults[0]
	assert.Equal(t, fault.KindCameraException, f.Kind)
	assert.ErrorIs(t, f, boom)
	assert.Equal(t, "apply_settings", f.Action)
	assert.Equal(t, "unconfigured", f.State)
	assert.Equal(t, "HIST_ID2_1_204_HEND", f.History)

	assert.True(t, r.w.Invalid())
	assert.True(t, r.w.Activity().Invalid())
	assert.Equal(t, 1, h.Releases())

	var got error
	r.post(t, OpenMessage(0, inline, OpenCallbacks{OnFailure: func(_ int, err error, _ string) { got = err }}))
	assert.ErrorIs(t, got, ErrInvalidated)
	assert.Equal(t, 1, r.drv.Opens())
	assert.NoError(t, r.w.Sync(time.Second), "barriers complete on an invalid worker")
}

func TestFaultResetKeepsWorkerUsable(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern"), Options{FaultPolicy: PolicyReset})
	r.open(t)
	r.drv.Handle().Panic("configure")

	r.post(t, ApplySettingsMessage(device.Settings{}))

	faults := r.faults.all()
	require.Len(t, faults, 1)
	assert.True(t, fault.IsPanic(faults[0]))
	assert.False(t, r.w.Invalid())
	assert.Equal(t, state.Unopened, r.w.Ladder().Get())
	assert.Equal(t, 1, r.drv.Handle().Releases())

	r.open(t)
	assert.Equal(t, 2, r.drv.Opens())
}

func TestDeviceErrorsReachSink(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern"), Options{})
	r.open(t)
	first := r.drv.Handle()

	first.EmitError(100)
	r.settle(t)
	r.post(t, Simple(ActionRelease))
	first.EmitError(200)
	first.Emit(device.AFFocusedLocked, device.AEConverged)
	r.settle(t)

	faults := r.faults.all()
	require.Len(t, faults, 1, "errors from a released handle are dropped")
	assert.Equal(t, fault.KindCameraError, faults[0].Kind)
	assert.Equal(t, 100, faults[0].Code)
}

func TestSettingsCache(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern"), Options{})
	r.open(t)

	_, ok := r.w.CachedSettings()
	assert.False(t, ok)

	want := device.Settings{JPEGQuality: 85, Vendor: map[string]string{"iso": "200"}}
	r.post(t, ApplySettingsMessage(want), Simple(ActionRefreshSettings))
	got, ok := r.w.CachedSettings()
	require.True(t, ok)
	assert.Equal(t, want, got)

	r.post(t, Simple(ActionRefreshSettings))
	assert.Len(t, filterCalls(r.drv.Calls(), "current_settings"), 1, "cache is filled lazily once")

	r.post(t, Simple(ActionRelease))
	_, ok = r.w.CachedSettings()
	assert.False(t, ok)
}

func TestUnlockAndLock(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern"), Options{})
	r.previewing(t)

	r.post(t, Simple(ActionUnlock))
	assert.Equal(t, state.Unlocked, r.w.Activity().Get())

	r.post(t, CaptureMessage(inline, CaptureCallbacks{}))
	assert.Empty(t, filterCalls(r.drv.Calls(), "capture_still"), "no capture while the sensor is lent out")

	r.post(t, Simple(ActionLock))
	assert.Equal(t, state.Idle, r.w.Activity().Get())
}

func TestSetPreviewTargetStopsActivePreview(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern"), Options{})
	r.previewing(t)

	r.post(t, SetPreviewTargetMessage(target("other")))
	assert.Equal(t, state.PreviewReady, r.w.Ladder().Get())
	assert.Equal(t, target("other"), r.drv.Handle().Target())

	r.post(t, SetPreviewTargetMessage(nil))
	assert.Equal(t, state.Configured, r.w.Ladder().Get())
	assert.Equal(t, []string{"stop_preview"}, filterCalls(r.drv.Calls(), "stop_preview"))
}

func TestWorkerNeverRunsTwoActionsAtOnce(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern"), Options{FaultPolicy: PolicyReset})
	r.open(t)

	msgs := []func() Message{
		func() Message { return ApplySettingsMessage(device.Settings{}) },
		func() Message { return SetPreviewTargetMessage(target("s")) },
		func() Message { return StartPreviewMessage(inline, nil) },
		func() Message { return AutoFocusMessage(inline, nil) },
		func() Message { return CaptureMessage(inline, CaptureCallbacks{}) },
		func() Message { return Simple(ActionStopPreview) },
		func() Message { return Simple(ActionRefreshSettings) },
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r.w.Post(msgs[(g+i)%len(msgs)]())
			}
		}(g)
	}
	wg.Wait()
	r.settle(t)

	assert.Equal(t, int32(1), r.drv.MaxConcurrent())
}

func TestStopReleasesDevice(t *testing.T) {
	drv := testkit.NewDriver("modern")
	r := newRig(t, drv, Options{})
	r.previewing(t)

	r.w.Stop()
	assert.Equal(t, 1, drv.Handle().Releases())
	assert.False(t, r.w.Post(Simple(ActionRelease)))
	assert.ErrorIs(t, r.w.Sync(time.Second), ErrStopped)
}

func TestParseFaultPolicy(t *testing.T) {
	p, err := ParseFaultPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyInvalidate, p)

	p, err = ParseFaultPolicy("reset")
	require.NoError(t, err)
	assert.Equal(t, PolicyReset, p)

	_, err = ParseFaultPolicy("retry")
	assert.Error(t, err)
}

func TestCancelAutoFocusSignalsCompletion(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern"), Options{})
	r.previewing(t)

	done := make(chan struct{})
	require.True(t, r.w.PostFront(CancelAutoFocusMessage(done)))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cancel completion not signalled")
	}
	r.post(t, Simple(ActionCancelAutoFocusFinish))

	// Closed on an invalid worker as well.
	r.drv.Handle().Fail("configure", errors.New("boom"))
	r.post(t, ApplySettingsMessage(device.Settings{}))
	require.True(t, r.w.Invalid())

	done = make(chan struct{})
	require.True(t, r.w.PostFront(CancelAutoFocusMessage(done)))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cancel completion not signalled on invalid worker")
	}
}

func TestCancelAutoFocusWithoutDoneChannel(t *testing.T) {
	r := newRig(t, testkit.NewDriver("modern"), Options{})
	r.previewing(t)

	r.post(t, CancelAutoFocusMessage(nil), Simple(ActionCancelAutoFocusFinish))
	assert.Equal(t, state.PreviewActive, r.w.Ladder().Get())

	var focused atomic.Bool
	r.post(t, AutoFocusMessage(inline, func(ok bool) { focused.Store(ok) }))
	assert.True(t, focused.Load(), "worker keeps running after a cancel without waiter")
}
