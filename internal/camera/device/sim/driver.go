// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package sim is a software camera backend. It produces a frame stream with
// plausible autofocus and auto-exposure behaviour and encodes real JPEG stills,
// so the camera core can run without hardware.
package sim

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ManuGH/camagent/internal/camera/device"
)

// Name is the backend name of the simulator.
const Name = "sim"

// Config shapes the simulated sensors.
type Config struct {
	Cameras  int
	Legacy   bool
	Disabled []int

	FrameInterval time.Duration
	// FocusFrames is how many frames an autofocus sweep scans before locking.
	FocusFrames int
	// ConvergeFrames is how many frames exposure searches after preview start
	// or a precapture trigger.
	ConvergeFrames int
	// FailFocus makes every sweep end unfocused.
	FailFocus bool
}

func (c Config) withDefaults() Config {
	if c.Cameras <= 0 {
		c.Cameras = 1
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = 33 * time.Millisecond
	}
	if c.FocusFrames <= 0 {
		c.FocusFrames = 3
	}
	if c.ConvergeFrames <= 0 {
		c.ConvergeFrames = 5
	}
	return c
}

// Driver opens simulated sensors. Each index can be open once at a time.
type Driver struct {
	cfg Config

	mu   sync.Mutex
	open map[int]bool
}

func New(cfg Config) *Driver {
	return &Driver{cfg: cfg.withDefaults(), open: make(map[int]bool)}
}

func (d *Driver) Name() string { return Name }

func (d *Driver) Cameras() []device.Info {
	out := make([]device.Info, 0, d.cfg.Cameras)
	for i := 0; i < d.cfg.Cameras; i++ {
		facing := "back"
		if i == 1 {
			facing = "front"
		}
		out = append(out, device.Info{Index: i, Facing: facing, Legacy: d.cfg.Legacy})
	}
	return out
}

func (d *Driver) Open(ctx context.Context, index int, events device.Events) (device.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 0 || index >= d.cfg.Cameras {
		return nil, fmt.Errorf("%w: %d", device.ErrNoSuchCamera, index)
	}
	if slices.Contains(d.cfg.Disabled, index) {
		return nil, device.ErrDisabled
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open[index] {
		return nil, fmt.Errorf("%w: %d", device.ErrInUse, index)
	}
	d.open[index] = true
	return newHandle(d, d.Cameras()[index], events), nil
}

func (d *Driver) closed(index int) {
	d.mu.Lock()
	delete(d.open, index)
	d.mu.Unlock()
}

// Capabilities describes what the simulated sensors accept.
func Capabilities() device.StaticCapabilities {
	return device.StaticCapabilities{
		PreviewSizes: []device.Size{{Width: 320, Height: 240}, {Width: 640, Height: 480}, {Width: 1280, Height: 720}},
		PhotoSizes:   []device.Size{{Width: 320, Height: 240}, {Width: 640, Height: 480}, {Width: 1280, Height: 720}},
		FlashModes:   []device.FlashMode{device.FlashOff, device.FlashAuto, device.FlashOn},
		FocusModes:   []device.FocusMode{device.FocusAuto, device.FocusContinuous, device.FocusFixed},
		MaxZoom:      4,
		MaxFPS:       30,
	}
}
