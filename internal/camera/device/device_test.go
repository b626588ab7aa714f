// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettings_CloneIsDeep(t *testing.T) {
	orig := Settings{
		FocusAreas: []Area{{Left: -10, Top: -10, Right: 10, Bottom: 10, Weight: 1}},
		Vendor:     map[string]string{"iso": "100"},
	}
	cp := orig.Clone()
	cp.FocusAreas[0].Weight = 99
	cp.Vendor["iso"] = "800"

	assert.Equal(t, 1, orig.FocusAreas[0].Weight)
	assert.Equal(t, "100", orig.Vendor["iso"])
}

func TestStaticCapabilities_Supports(t *testing.T) {
	caps := StaticCapabilities{
		PreviewSizes: []Size{{1280, 720}, {1920, 1080}},
		PhotoSizes:   []Size{{4000, 3000}},
		FlashModes:   []FlashMode{FlashOff, FlashAuto},
		MaxZoom:      4,
		MaxFPS:       30,
	}

	tests := []struct {
		name string
		s    Settings
		want bool
	}{
		{"empty settings", Settings{}, true},
		{"supported sizes", Settings{PreviewSize: Size{1280, 720}, PhotoSize: Size{4000, 3000}}, true},
		{"unsupported preview", Settings{PreviewSize: Size{640, 480}}, false},
		{"unsupported photo", Settings{PhotoSize: Size{1, 1}}, false},
		{"flash on not offered", Settings{Flash: FlashOn}, false},
		{"zoom too high", Settings{Zoom: 8}, false},
		{"fps too high", Settings{PreviewFPS: 60}, false},
		{"bad jpeg quality", Settings{JPEGQuality: 101}, false},
		{"any focus mode", Settings{Focus: FocusFixed}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, caps.Supports(tt.s))
		})
	}
}

func TestStates(t *testing.T) {
	assert.True(t, AFFocusedLocked.Locked())
	assert.True(t, AFNotFocusedLocked.Locked())
	assert.False(t, AFScanning.Locked())
	assert.True(t, AEConverged.Settled())
	assert.False(t, AEPrecapture.Settled())
	assert.Equal(t, "jpeg", CaptureJPEG.String())
}
