// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"fmt"
	"os"

	"github.com/ManuGH/camagent/internal/config"
	"github.com/ManuGH/camagent/internal/log"
)

// PerformStartupChecks validates the environment before the daemon starts.
// The data directory is created when missing.
func PerformStartupChecks(cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := checkWritableDir(cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}

	if idx := cfg.Camera.Index; idx >= cfg.Camera.Count && cfg.Camera.Backend == config.DefaultBackend {
		return fmt.Errorf("camera.index %d out of range: the simulated backend has %d cameras", idx, cfg.Camera.Count)
	}

	logger.Info().Str("data_dir", cfg.DataDir).Msg("all startup checks passed")
	return nil
}
