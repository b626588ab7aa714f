// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package worker

import (
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/camagent/internal/camera/device"
	"github.com/ManuGH/camagent/internal/camera/executor"
	"github.com/ManuGH/camagent/internal/camera/fault"
	"github.com/ManuGH/camagent/internal/camera/state"
	"github.com/ManuGH/camagent/internal/camera/testkit"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var inline = executor.Func(func(fn func()) { fn() })

type faultLog struct {
	mu     sync.Mutex
	faults []*fault.Fault
}

func (l *faultLog) HandleFault(f *fault.Fault) {
	l.mu.Lock()
	l.faults = append(l.faults, f)
	l.mu.Unlock()
}

func (l *faultLog) all() []*fault.Fault {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fault.Fault(nil), l.faults...)
}

type rig struct {
	w      *Worker
	drv    *testkit.Driver
	faults *faultLog
}

func newRig(t *testing.T, drv *testkit.Driver, opts Options) *rig {
	t.Helper()
	faults := &faultLog{}
	sink := fault.NewSink(drv.Name(), zerolog.Nop())
	sink.SetHandler(faults, inline)

	opts.Sink = sink
	opts.Logger = zerolog.Nop()
	if opts.Timeout == 0 {
		opts.Timeout = time.Second
	}
	w := New(drv, opts)
	t.Cleanup(w.Stop)
	return &rig{w: w, drv: drv, faults: faults}
}

// settle drains the queue including events reposted while draining.
func (r *rig) settle(t *testing.T) {
	t.Helper()
	for i := 0; i < 4; i++ {
		require.NoError(t, r.w.Sync(time.Second))
	}
}

func (r *rig) post(t *testing.T, msgs ...Message) {
	t.Helper()
	for _, m := range msgs {
		require.True(t, r.w.Post(m))
	}
	r.settle(t)
}

func (r *rig) open(t *testing.T) {
	t.Helper()
	r.post(t, OpenMessage(0, inline, OpenCallbacks{}))
	require.Equal(t, state.Unconfigured, r.w.Ladder().Get())
}

type target string

func (tg target) TargetID() string { return string(tg) }

// previewing drives the worker to PreviewActive.
func (r *rig) previewing(t *testing.T) {
	t.Helper()
	r.open(t)
	r.post(t,
		ApplySettingsMessage(device.Settings{PreviewSize: device.Size{Width: 640, Height: 480}}),
		SetPreviewTargetMessage(target("surface")),
		StartPreviewMessage(inline, nil),
	)
	require.Equal(t, state.PreviewActive, r.w.Ladder().Get())
}

// blockingExecutor holds the worker inside a callback delivery until released.
type blockingExecutor struct {
	entered chan struct{}
	gate    chan struct{}
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{entered: make(chan struct{}), gate: make(chan struct{})}
}

func (b *blockingExecutor) Post(fn func()) bool {
	close(b.entered)
	<-b.gate
	fn()
	return true
}

// hold parks the worker goroutine and returns a release function.
func (r *rig) hold(t *testing.T) func() {
	t.Helper()
	ex := newBlockingExecutor()
	require.True(t, r.w.Post(OpenMessage(0, ex, OpenCallbacks{OnAlreadyOpen: func(int, string) {}})))
	select {
	case <-ex.entered:
	case <-time.After(time.Second):
		t.Fatal("worker never reached the blocking callback")
	}
	return func() { close(ex.gate) }
}

func filterCalls(calls []string, keep ...string) []string {
	set := make(map[string]bool, len(keep))
	for _, k := range keep {
		set[k] = true
	}
	var out []string
	for _, c := range calls {
		if set[c] {
			out = append(out, c)
		}
	}
	return out
}
