// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"time"

	"github.com/ManuGH/camagent/internal/validate"
)

// Bounds enforced by Validate.
const (
	// MinQueueCapacity leaves room for a job and its companion unlock job.
	MinQueueCapacity    = 2
	MaxQueueCapacity    = 1 << 16
	MinOperationTimeout = 10 * time.Millisecond
	MaxOperationTimeout = 5 * time.Minute
	MaxHistoryLength    = 100_000
	MaxCameraCount      = 16
)

var (
	logLevels     = []string{"trace", "debug", "info", "warn", "error"}
	faultPolicies = []string{"invalidate", "reset"}
	exporters     = []string{"grpc", "http"}
)

// Validate checks a fully merged AppConfig and reports every violation at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.NotEmpty("data_dir", cfg.DataDir)
	v.OneOf("log.level", cfg.Log.Level, logLevels)
	v.NotEmpty("log.service", cfg.Log.Service)

	cam := cfg.Camera
	v.NotEmpty("camera.backend", cam.Backend)
	v.NonNegative("camera.index", cam.Index)
	v.Range("camera.queue_capacity", cam.QueueCapacity, MinQueueCapacity, MaxQueueCapacity)
	v.DurationRange("camera.operation_timeout", cam.OperationTimeout, MinOperationTimeout, MaxOperationTimeout)
	v.Range("camera.history_length", cam.HistoryLength, 1, MaxHistoryLength)
	v.OneOf("camera.fault_policy", cam.FaultPolicy, faultPolicies)
	v.Range("camera.count", cam.Count, 1, MaxCameraCount)
	for i, idx := range cam.DisabledIndices {
		v.NonNegative(fmt.Sprintf("camera.disabled_indices[%d]", i), idx)
	}

	v.ListenAddr("api.listen_addr", cfg.API.ListenAddr)
	v.NonNegative("api.rate_limit", cfg.API.RateLimit)

	if tel := cfg.Telemetry; tel.Enabled {
		v.OneOf("telemetry.exporter", tel.Exporter, exporters)
		v.Endpoint("telemetry.endpoint", tel.Endpoint)
		v.Fraction("telemetry.sampling_rate", tel.SamplingRate)
	}

	v.Path("faults.journal_path", cfg.Faults.JournalPath)
	v.Path("faults.dump_path", cfg.Faults.DumpPath)

	return v.Err()
}
