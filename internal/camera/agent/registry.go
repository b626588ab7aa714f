// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package agent

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ManuGH/camagent/internal/camera/device"
	xglog "github.com/ManuGH/camagent/internal/log"
)

// Registry holds at most one agent per backend and reference-counts it.
// The composition root owns the registry; there is no process-wide instance.
type Registry struct {
	opts Options

	mu       sync.Mutex
	backends map[string]*registration
	closed   bool
}

type registration struct {
	driver device.Driver
	caps   device.CapabilitySet
	agent  *Agent
	refs   int
}

// NewRegistry creates an empty registry. opts is the template for every
// agent it creates; Name is overridden with the backend name.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:     opts,
		backends: make(map[string]*registration),
	}
}

// SetOptions replaces the agent template. Live agents keep their options;
// agents created by later Acquire calls use opts.
func (r *Registry) SetOptions(opts Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = opts
}

// Register makes backend available for Acquire.
func (r *Registry) Register(backend string, driver device.Driver, caps device.CapabilitySet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if _, ok := r.backends[backend]; ok {
		return fmt.Errorf("%w: %s", ErrBackendRegistered, backend)
	}
	r.backends[backend] = &registration{driver: driver, caps: caps}
	return nil
}

// Acquire returns the backend's agent, creating it on first use, and takes a reference.
func (r *Registry) Acquire(backend string) (*Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	reg, ok := r.backends[backend]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
	if reg.agent == nil {
		opts := r.opts
		opts.Name = backend
		reg.agent = New(reg.driver, reg.caps, opts)
		opts.Logger.Info().Str(xglog.FieldBackend, backend).Msg("camera agent created")
	}
	reg.refs++
	return reg.agent, nil
}

// Release drops a reference. The last release closes the agent; the next
// Acquire starts a fresh one.
func (r *Registry) Release(backend string) error {
	r.mu.Lock()
	reg, ok := r.backends[backend]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
	if reg.refs == 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBackendNotAcquired, backend)
	}
	reg.refs--
	var closing *Agent
	if reg.refs == 0 {
		closing, reg.agent = reg.agent, nil
	}
	logger := r.opts.Logger
	r.mu.Unlock()

	if closing != nil {
		closing.Close()
		logger.Info().Str(xglog.FieldBackend, backend).Msg("camera agent closed after last release")
	}
	return nil
}

// Lookup returns the live agent for backend without taking a reference.
func (r *Registry) Lookup(backend string) (*Agent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.backends[backend]
	if !ok || reg.agent == nil {
		return nil, false
	}
	return reg.agent, true
}

// Refs returns the reference count of backend.
func (r *Registry) Refs(backend string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.backends[backend]; ok {
		return reg.refs
	}
	return 0
}

// Backends lists registered backend names in order.
func (r *Registry) Backends() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.backends))
	for name := range r.backends {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close closes every live agent regardless of references.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	var agents []*Agent
	for _, reg := range r.backends {
		if reg.agent != nil {
			agents = append(agents, reg.agent)
			reg.agent = nil
			reg.refs = 0
		}
	}
	r.mu.Unlock()

	for _, a := range agents {
		a.Close()
	}
}
