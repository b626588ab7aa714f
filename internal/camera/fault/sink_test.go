// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package fault

import (
	"errors"
	"testing"

	"github.com/ManuGH/camagent/internal/camera/executor"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var inline = executor.Func(func(fn func()) { fn() })

func TestSink_DeliversToHandler(t *testing.T) {
	s := NewSink("modern", zerolog.Nop())

	var got []*Fault
	s.SetHandler(HandlerFunc(func(f *Fault) { got = append(got, f) }), inline)

	cause := errors.New("configure failed")
	s.CameraError(7)
	s.CameraException(cause, "HIST_ID0_1_204_HEND", "apply_settings", "unconfigured")
	s.DispatchException(errors.New("stuck"))

	require.Len(t, got, 3)
	assert.Equal(t, KindCameraError, got[0].Kind)
	assert.Equal(t, 7, got[0].Code)

	assert.Equal(t, KindCameraException, got[1].Kind)
	assert.ErrorIs(t, got[1], cause)
	assert.Equal(t, "HIST_ID0_1_204_HEND", got[1].History)
	assert.Equal(t, "apply_settings", got[1].Action)
	assert.Contains(t, got[1].Error(), "unconfigured")

	assert.Equal(t, KindDispatchFailure, got[2].Kind)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestSink_DefaultFailsFast(t *testing.T) {
	s := NewSink("legacy", zerolog.Nop())
	s.SetHandler(nil, inline)

	assert.PanicsWithError(t, "camera legacy: device error 100", func() {
		s.CameraError(100)
	})
}

func TestSink_RejectingExecutorFailsFast(t *testing.T) {
	s := NewSink("legacy", zerolog.Nop())
	reject := rejectingExecutor{}
	s.SetHandler(HandlerFunc(func(*Fault) {}), reject)

	assert.Panics(t, func() { s.DispatchException(errors.New("x")) })
}

func TestFromPanic(t *testing.T) {
	cause := errors.New("nil handle")
	err := FromPanic(cause)
	assert.True(t, IsPanic(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "nil handle")

	assert.False(t, IsPanic(cause))
	assert.NotEmpty(t, FromPanic("str").(*PanicError).Stack)
}

type rejectingExecutor struct{}

func (rejectingExecutor) Post(func()) bool { return false }
