// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package device

import "slices"

// CapabilitySet answers whether a settings snapshot can be applied.
type CapabilitySet interface {
	Supports(s Settings) bool
}

// StaticCapabilities is a CapabilitySet built from enumerated backend limits.
// Empty lists mean "anything goes" for that dimension.
type StaticCapabilities struct {
	PreviewSizes []Size
	PhotoSizes   []Size
	FlashModes   []FlashMode
	FocusModes   []FocusMode
	MaxZoom      float64
	MaxFPS       int
}

// Supports implements CapabilitySet.
func (c StaticCapabilities) Supports(s Settings) bool {
	if !s.PreviewSize.IsZero() && len(c.PreviewSizes) > 0 && !slices.Contains(c.PreviewSizes, s.PreviewSize) {
		return false
	}
	if !s.PhotoSize.IsZero() && len(c.PhotoSizes) > 0 && !slices.Contains(c.PhotoSizes, s.PhotoSize) {
		return false
	}
	if s.Flash != "" && len(c.FlashModes) > 0 && !slices.Contains(c.FlashModes, s.Flash) {
		return false
	}
	if s.Focus != "" && len(c.FocusModes) > 0 && !slices.Contains(c.FocusModes, s.Focus) {
		return false
	}
	if s.Zoom < 0 || (c.MaxZoom > 0 && s.Zoom > c.MaxZoom) {
		return false
	}
	if s.PreviewFPS < 0 || (c.MaxFPS > 0 && s.PreviewFPS > c.MaxFPS) {
		return false
	}
	if s.JPEGQuality < 0 || s.JPEGQuality > 100 {
		return false
	}
	return true
}

// AnyCapabilities accepts every settings snapshot.
type AnyCapabilities struct{}

// Supports implements CapabilitySet.
func (AnyCapabilities) Supports(Settings) bool { return true }
