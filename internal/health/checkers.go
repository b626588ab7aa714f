// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ManuGH/camagent/internal/camera/agent"
)

// AgentChecker reports the camera agents of a registry. An invalidated
// agent is unhealthy; a backend without a live agent is healthy and idle.
type AgentChecker struct {
	registry *agent.Registry
}

// NewAgentChecker creates a checker over reg.
func NewAgentChecker(reg *agent.Registry) *AgentChecker {
	return &AgentChecker{registry: reg}
}

func (c *AgentChecker) Name() string { return "cameras" }

func (c *AgentChecker) Check(_ context.Context) CheckResult {
	details := make(map[string]any)
	var invalid []string
	for _, backend := range c.registry.Backends() {
		a, ok := c.registry.Lookup(backend)
		if !ok {
			details[backend] = "idle"
			continue
		}
		if a.Invalid() {
			invalid = append(invalid, backend)
			details[backend] = "invalid"
			continue
		}
		details[backend] = a.State().String()
	}

	if len(invalid) > 0 {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("camera agents invalidated by a fault: %v", invalid),
			Details: details,
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("%d backends", len(details)),
		Details: details,
	}
}

// Verifier is a store with an integrity check.
type Verifier interface {
	Verify(ctx context.Context) error
}

// StoreChecker runs a store's integrity check. A failing check degrades
// the service; faults still reach the log.
type StoreChecker struct {
	name  string
	store Verifier
}

// NewStoreChecker creates a store checker.
func NewStoreChecker(name string, store Verifier) *StoreChecker {
	return &StoreChecker{name: name, store: store}
}

func (c *StoreChecker) Name() string { return c.name }

func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	if c.store == nil {
		return CheckResult{Status: StatusHealthy, Message: "not configured (optional)"}
	}
	if err := c.store.Verify(ctx); err != nil {
		return CheckResult{Status: StatusDegraded, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "integrity ok"}
}

// DirChecker verifies a directory exists and is writable.
type DirChecker struct {
	name string
	path string
}

// NewDirChecker creates a directory checker.
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(_ context.Context) CheckResult {
	if err := checkWritableDir(c.path); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "writable"}
}

func checkWritableDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	f, err := os.CreateTemp(path, ".write_test*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(filepath.Clean(name))
	return nil
}
