// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"path/filepath"
	"slices"
	"time"
)

// Defaults.
const (
	DefaultDataDir          = "data"
	DefaultLogLevel         = "info"
	DefaultServiceName      = "camagent"
	DefaultBackend          = "sim"
	DefaultQueueCapacity    = 256
	DefaultOperationTimeout = 3500 * time.Millisecond
	DefaultHistoryLength    = 400
	DefaultFaultPolicy      = "invalidate"
	DefaultCameraCount      = 2
	DefaultListenAddr       = ":8088"
	DefaultRateLimit        = 120
	DefaultExporter         = "grpc"
	DefaultEndpoint         = "localhost:4317"
	DefaultSamplingRate     = 1.0
	DefaultJournalPath      = "faults.db"
	DefaultDumpPath         = "last-fault.json"
)

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	// Version is the binary version; it is never read from file or env.
	Version string `yaml:"-"`

	DataDir   string          `yaml:"data_dir"`
	Log       LogConfig       `yaml:"log"`
	Camera    CameraConfig    `yaml:"camera"`
	API       APIConfig       `yaml:"api"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Faults    FaultsConfig    `yaml:"faults"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// CameraConfig configures the agent registry and the simulated driver.
type CameraConfig struct {
	Backend          string        `yaml:"backend"`
	Index            int           `yaml:"index"`
	QueueCapacity    int           `yaml:"queue_capacity"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	HistoryLength    int           `yaml:"history_length"`
	FaultPolicy      string        `yaml:"fault_policy"`

	// Count, Legacy and DisabledIndices shape the simulated cameras.
	Count           int   `yaml:"count"`
	Legacy          bool  `yaml:"legacy"`
	DisabledIndices []int `yaml:"disabled_indices"`
}

// APIConfig configures the HTTP control plane.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// RateLimit is requests per minute per client on control routes; 0 disables it.
	RateLimit int `yaml:"rate_limit"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Environment  string  `yaml:"environment"`
}

// FaultsConfig locates the fault journal and the last-fault dump. Relative
// paths are resolved against the data directory; an empty path disables
// the corresponding sink.
type FaultsConfig struct {
	JournalPath string `yaml:"journal_path"`
	DumpPath    string `yaml:"dump_path"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir: DefaultDataDir,
		Log: LogConfig{
			Level:   DefaultLogLevel,
			Service: DefaultServiceName,
		},
		Camera: CameraConfig{
			Backend:          DefaultBackend,
			QueueCapacity:    DefaultQueueCapacity,
			OperationTimeout: DefaultOperationTimeout,
			HistoryLength:    DefaultHistoryLength,
			FaultPolicy:      DefaultFaultPolicy,
			Count:            DefaultCameraCount,
		},
		API: APIConfig{
			ListenAddr: DefaultListenAddr,
			RateLimit:  DefaultRateLimit,
		},
		Telemetry: TelemetryConfig{
			Exporter:     DefaultExporter,
			Endpoint:     DefaultEndpoint,
			SamplingRate: DefaultSamplingRate,
		},
		Faults: FaultsConfig{
			JournalPath: DefaultJournalPath,
			DumpPath:    DefaultDumpPath,
		},
	}
}

// Clone returns a copy that shares no slices with c.
func (c AppConfig) Clone() AppConfig {
	c.Camera.DisabledIndices = slices.Clone(c.Camera.DisabledIndices)
	return c
}

// JournalFile returns the absolute journal path, or "" when disabled.
func (c AppConfig) JournalFile() string {
	return c.resolve(c.Faults.JournalPath)
}

// DumpFile returns the absolute last-fault dump path, or "" when disabled.
func (c AppConfig) DumpFile() string {
	return c.resolve(c.Faults.DumpPath)
}

func (c AppConfig) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}
