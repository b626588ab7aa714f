// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package device

import (
	"fmt"
	"maps"
	"slices"
)

// Size is a pixel resolution.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// IsZero reports whether the size is unset.
func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

// FlashMode selects flash behaviour for stills.
type FlashMode string

const (
	FlashOff  FlashMode = "off"
	FlashAuto FlashMode = "auto"
	FlashOn   FlashMode = "on"
)

// FocusMode selects the autofocus routine.
type FocusMode string

const (
	FocusAuto       FocusMode = "auto"
	FocusContinuous FocusMode = "continuous-picture"
	FocusFixed      FocusMode = "fixed"
)

// Settings is a snapshot of desired preview/capture configuration. It is a
// value: Clone before sharing it across goroutines.
type Settings struct {
	PreviewSize  Size              `json:"preview_size"`
	PhotoSize    Size              `json:"photo_size"`
	PreviewFPS   int               `json:"preview_fps"`
	JPEGQuality  int               `json:"jpeg_quality"`
	Flash        FlashMode         `json:"flash"`
	Focus        FocusMode         `json:"focus"`
	Zoom         float64           `json:"zoom"`
	FocusAreas   []Area            `json:"focus_areas,omitempty"`
	MeteringArea []Area            `json:"metering_areas,omitempty"`
	Vendor       map[string]string `json:"vendor,omitempty"`
}

// Area is a weighted metering/focus rectangle in normalized [-1000,1000] coordinates.
type Area struct {
	Left, Top, Right, Bottom int
	Weight                   int
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := s
	out.FocusAreas = slices.Clone(s.FocusAreas)
	out.MeteringArea = slices.Clone(s.MeteringArea)
	out.Vendor = maps.Clone(s.Vendor)
	return out
}

// FlashForced reports whether the settings demand flash regardless of metering.
func (s Settings) FlashForced() bool {
	return s.Flash == FlashOn
}

// SameSizes reports whether preview and photo sizes match other.
func (s Settings) SameSizes(other Settings) bool {
	return s.PreviewSize == other.PreviewSize && s.PhotoSize == other.PhotoSize
}
