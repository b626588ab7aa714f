// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sim

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/camagent/internal/camera/device"
)

type handle struct {
	d      *Driver
	info   device.Info
	events device.Events

	mu         sync.Mutex
	settings   device.Settings
	target     device.Target
	released   bool
	lent       bool
	frame      uint64
	af         device.AFState
	afLeft     int
	ae         device.AEState
	aeLeft     int
	stopFrames chan struct{}

	wg sync.WaitGroup
}

var _ device.Locker = (*handle)(nil)

func newHandle(d *Driver, info device.Info, events device.Events) *handle {
	return &handle{
		d:      d,
		info:   info,
		events: events,
		settings: device.Settings{
			PreviewSize: device.Size{Width: 640, Height: 480},
			PhotoSize:   device.Size{Width: 640, Height: 480},
			PreviewFPS:  30,
			JPEGQuality: 85,
			Flash:       device.FlashAuto,
			Focus:       device.FocusAuto,
			Zoom:        1,
		},
	}
}

func (h *handle) Info() device.Info { return h.info }

func (h *handle) usable() error {
	if h.released {
		return device.ErrReleased
	}
	return nil
}

func (h *handle) Configure(_ context.Context, s device.Settings) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usable(); err != nil {
		return err
	}
	h.settings = s.Clone()
	return nil
}

func (h *handle) CurrentSettings(context.Context) (device.Settings, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usable(); err != nil {
		return device.Settings{}, err
	}
	return h.settings.Clone(), nil
}

func (h *handle) AttachPreviewTarget(_ context.Context, target device.Target) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usable(); err != nil {
		return err
	}
	h.target = target
	return nil
}

func (h *handle) StartRepeatingPreview(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usable(); err != nil {
		return err
	}
	if h.stopFrames != nil {
		return nil
	}
	h.ae, h.aeLeft = device.AESearching, h.d.cfg.ConvergeFrames
	h.af, h.afLeft = device.AFInactive, 0
	h.stopFrames = make(chan struct{})
	h.wg.Add(1)
	go h.frames(h.stopFrames)
	return nil
}

func (h *handle) StopRepeatingPreview(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usable(); err != nil {
		return err
	}
	h.stopFramesLocked()
	return nil
}

func (h *handle) stopFramesLocked() {
	if h.stopFrames != nil {
		close(h.stopFrames)
		h.stopFrames = nil
	}
}

func (h *handle) TriggerAutoFocus(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usable(); err != nil {
		return err
	}
	h.af, h.afLeft = device.AFScanning, h.d.cfg.FocusFrames
	return nil
}

func (h *handle) CancelAutoFocus(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usable(); err != nil {
		return err
	}
	h.af, h.afLeft = device.AFInactive, 0
	return nil
}

func (h *handle) TriggerPrecapture(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usable(); err != nil {
		return err
	}
	h.ae, h.aeLeft = device.AEPrecapture, h.d.cfg.ConvergeFrames
	return nil
}

func (h *handle) CaptureStill(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usable(); err != nil {
		return err
	}
	s := h.settings.Clone()
	seed := h.frame
	h.wg.Add(1)
	go h.still(s, seed)
	return nil
}

func (h *handle) Unlock(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usable(); err != nil {
		return err
	}
	h.lent = true
	h.stopFramesLocked()
	return nil
}

func (h *handle) Lock(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usable(); err != nil {
		return err
	}
	h.lent = false
	return nil
}

// Release stops every producer goroutine and frees the index.
func (h *handle) Release() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return device.ErrReleased
	}
	h.released = true
	h.stopFramesLocked()
	h.mu.Unlock()

	h.wg.Wait()
	h.d.closed(h.info.Index)
	return nil
}

// frames emits one partial and one final result per tick.
func (h *handle) frames(stop <-chan struct{}) {
	defer h.wg.Done()
	ticker := time.NewTicker(h.d.cfg.FrameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		r, ok := h.advance()
		if !ok {
			return
		}
		partial := r
		partial.Partial = true
		h.events.OnResult(partial)
		h.events.OnResult(r)
	}
}

func (h *handle) advance() (device.Result, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return device.Result{}, false
	}
	h.frame++

	if h.af == device.AFScanning {
		h.afLeft--
		if h.afLeft <= 0 {
			h.af = device.AFFocusedLocked
			if h.d.cfg.FailFocus {
				h.af = device.AFNotFocusedLocked
			}
		}
	}
	if h.ae == device.AESearching || h.ae == device.AEPrecapture {
		h.aeLeft--
		if h.aeLeft <= 0 {
			h.ae = device.AEConverged
			if h.settings.Flash == device.FlashOn {
				h.ae = device.AEFlashRequired
			}
		}
	}
	return device.Result{Frame: h.frame, AF: h.af, AE: h.ae}, true
}

func (h *handle) still(s device.Settings, seed uint64) {
	defer h.wg.Done()
	size := s.PhotoSize
	if size.IsZero() {
		size = device.Size{Width: 640, Height: 480}
	}

	h.events.OnCapture(device.CaptureEvent{Kind: device.CaptureShutter})

	img := render(size, seed)
	h.events.OnCapture(device.CaptureEvent{Kind: device.CaptureRaw, Data: img.Pix})

	if thumb, err := encodeJPEG(render(device.Size{Width: 160, Height: 120}, seed), 60); err == nil {
		h.events.OnCapture(device.CaptureEvent{Kind: device.CapturePostview, Data: thumb})
	}

	data, err := encodeJPEG(img, s.JPEGQuality)
	if err != nil {
		h.events.OnError(errorEncode)
		return
	}
	h.events.OnCapture(device.CaptureEvent{Kind: device.CaptureJPEG, Data: data})
}
