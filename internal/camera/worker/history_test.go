// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoryString(t *testing.T) {
	h := newHistory(3)
	assert.Equal(t, "HIST_ID0_HEND", h.String())

	h.add(ActionOpen)
	h.add(ActionApplySettings)
	assert.Equal(t, "HIST_ID2_1_204_HEND", h.String())

	h.add(ActionSetPreviewTarget)
	h.add(ActionStartPreview)
	h.add(ActionCapture)
	assert.Equal(t, "HIST_ID5_101_102_601_HEND", h.String(), "oldest entries fall off")
}

func TestRequestAccept(t *testing.T) {
	r := request{id: 1, after: 10}

	assert.False(t, r.accept(9), "predates the request")
	assert.False(t, r.accept(10), "frame current at arming time")
	assert.True(t, r.accept(12))
	assert.False(t, r.accept(11), "out of order")
	assert.True(t, r.accept(12), "partial and final of the same frame")
	assert.True(t, r.accept(13))
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "cancel_auto_focus", ActionCancelAutoFocus.String())
	assert.Equal(t, "action(42)", Action(42).String())
	assert.True(t, actionBarrier.internal())
	assert.False(t, ActionCapture.internal())
}
