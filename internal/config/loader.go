// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ManuGH/camagent/internal/log"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty configPath loads
// defaults and environment only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path, if any.
func (l *Loader) Path() string {
	return l.configPath
}

func (l *Loader) envString(key, def string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, def)
}

func (l *Loader) envIntList(key string, def []int) []int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseIntList(key, def)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// It enforces Parse File (Strict) -> Apply Env -> Validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	l.warnUnknownEnv()

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg. Keys absent from the file keep
// their current value.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.DataDir = l.envString("CAMAGENT_DATA_DIR", cfg.DataDir)

	cfg.Log.Level = l.envString("CAMAGENT_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Service = l.envString("CAMAGENT_LOG_SERVICE", cfg.Log.Service)

	cam := &cfg.Camera
	cam.Backend = l.envString("CAMAGENT_CAMERA_BACKEND", cam.Backend)
	cam.Index = l.envInt("CAMAGENT_CAMERA_INDEX", cam.Index)
	cam.QueueCapacity = l.envInt("CAMAGENT_CAMERA_QUEUE_CAPACITY", cam.QueueCapacity)
	cam.OperationTimeout = l.envDuration("CAMAGENT_CAMERA_OPERATION_TIMEOUT", cam.OperationTimeout)
	cam.HistoryLength = l.envInt("CAMAGENT_CAMERA_HISTORY_LENGTH", cam.HistoryLength)
	cam.FaultPolicy = l.envString("CAMAGENT_CAMERA_FAULT_POLICY", cam.FaultPolicy)
	cam.Count = l.envInt("CAMAGENT_CAMERA_COUNT", cam.Count)
	cam.Legacy = l.envBool("CAMAGENT_CAMERA_LEGACY", cam.Legacy)
	cam.DisabledIndices = l.envIntList("CAMAGENT_CAMERA_DISABLED_INDICES", cam.DisabledIndices)

	cfg.API.ListenAddr = l.envString("CAMAGENT_API_LISTEN_ADDR", cfg.API.ListenAddr)
	cfg.API.RateLimit = l.envInt("CAMAGENT_API_RATE_LIMIT", cfg.API.RateLimit)

	tel := &cfg.Telemetry
	tel.Enabled = l.envBool("CAMAGENT_TELEMETRY_ENABLED", tel.Enabled)
	tel.Exporter = l.envString("CAMAGENT_TELEMETRY_EXPORTER", tel.Exporter)
	tel.Endpoint = l.envString("CAMAGENT_TELEMETRY_ENDPOINT", tel.Endpoint)
	tel.SamplingRate = l.envFloat("CAMAGENT_TELEMETRY_SAMPLING_RATE", tel.SamplingRate)
	tel.Environment = l.envString("CAMAGENT_TELEMETRY_ENVIRONMENT", tel.Environment)

	cfg.Faults.JournalPath = l.envString("CAMAGENT_FAULTS_JOURNAL_PATH", cfg.Faults.JournalPath)
	cfg.Faults.DumpPath = l.envString("CAMAGENT_FAULTS_DUMP_PATH", cfg.Faults.DumpPath)
}

// UnknownEnvKeys lists CAMAGENT_* variables in the environment that Load
// did not consume, sorted.
func (l *Loader) UnknownEnvKeys() []string {
	var out []string
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			out = append(out, key)
		}
	}
	slices.Sort(out)
	return out
}

func (l *Loader) warnUnknownEnv() {
	unknown := l.UnknownEnvKeys()
	if len(unknown) == 0 {
		return
	}
	logger := log.WithComponent("config")
	logger.Warn().
		Strs("keys", unknown).
		Msg("ignoring unknown CAMAGENT_ environment variables")
}
