// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package testkit provides a scriptable in-memory camera backend for tests.
package testkit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/camagent/internal/camera/device"
)

// Driver is a fake backend. By default handles answer every trigger with
// the result a well-behaved sensor would produce; Manual turns that off so
// tests can emit results themselves.
type Driver struct {
	name    string
	cameras []device.Info

	mu       sync.Mutex
	openErr  map[int]error
	handles  []*Handle
	calls    []string
	manual   bool
	converge bool

	active    atomic.Int32
	maxActive atomic.Int32
}

func NewDriver(name string, cameras ...device.Info) *Driver {
	if len(cameras) == 0 {
		cameras = []device.Info{{Index: 0, Facing: "back"}}
	}
	return &Driver{
		name:     name,
		cameras:  cameras,
		openErr:  make(map[int]error),
		converge: true,
	}
}

// Manual disables automatic results.
func (d *Driver) Manual() *Driver {
	d.mu.Lock()
	d.manual = true
	d.mu.Unlock()
	return d
}

// Unconverged makes preview frames report searching exposure.
func (d *Driver) Unconverged() *Driver {
	d.mu.Lock()
	d.converge = false
	d.mu.Unlock()
	return d
}

func (d *Driver) FailOpen(index int, err error) {
	d.mu.Lock()
	d.openErr[index] = err
	d.mu.Unlock()
}

func (d *Driver) Name() string { return d.name }

func (d *Driver) Cameras() []device.Info { return d.cameras }

func (d *Driver) Open(_ context.Context, index int, events device.Events) (device.Handle, error) {
	d.enter("open")
	defer d.exit()

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.openErr[index]; err != nil {
		return nil, err
	}
	for _, info := range d.cameras {
		if info.Index == index {
			h := &Handle{
				d:        d,
				info:     info,
				events:   events,
				failures: make(map[string]error),
				panics:   make(map[string]bool),
				manual:   d.manual,
				converge: d.converge,
			}
			d.handles = append(d.handles, h)
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", device.ErrNoSuchCamera, index)
}

// Handle returns the most recently opened handle.
func (d *Driver) Handle() *Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.handles) == 0 {
		return nil
	}
	return d.handles[len(d.handles)-1]
}

// Opens returns how many handles were opened.
func (d *Driver) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handles)
}

// Calls returns every backend call in order.
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// MaxConcurrent returns the highest number of backend calls observed in flight at once.
func (d *Driver) MaxConcurrent() int32 {
	return d.maxActive.Load()
}

func (d *Driver) enter(call string) {
	n := d.active.Add(1)
	for {
		cur := d.maxActive.Load()
		if n <= cur || d.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
}

func (d *Driver) exit() {
	d.active.Add(-1)
}
