// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ManuGH/camagent/internal/api"
	"github.com/ManuGH/camagent/internal/camera/agent"
	"github.com/ManuGH/camagent/internal/camera/device/sim"
	"github.com/ManuGH/camagent/internal/camera/executor"
	"github.com/ManuGH/camagent/internal/camera/worker"
	"github.com/ManuGH/camagent/internal/config"
	"github.com/ManuGH/camagent/internal/faultlog"
	"github.com/ManuGH/camagent/internal/health"
	"github.com/ManuGH/camagent/internal/log"
	"github.com/ManuGH/camagent/internal/telemetry"
	"github.com/rs/zerolog"
)

// faultJournalKeep bounds the journal at startup.
const faultJournalKeep = 10000

// Runtime is the composed camera service: one registry, its fault pipeline
// and the HTTP surface over both.
type Runtime struct {
	Registry  *agent.Registry
	Journal   *faultlog.Journal
	Recorder  *faultlog.Recorder
	Health    *health.Manager
	API       *api.Server
	Telemetry *telemetry.Provider

	faultLoop *executor.Loop
	logger    zerolog.Logger
}

// Bootstrap builds the runtime from cfg. On error everything built so far
// is closed again.
func Bootstrap(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (rt *Runtime, err error) {
	if err := health.PerformStartupChecks(cfg); err != nil {
		return nil, err
	}

	rt = &Runtime{logger: logger}
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
			rt = nil
		}
	}()

	rt.Telemetry, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	if path := cfg.JournalFile(); path != "" {
		rt.Journal, err = faultlog.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("fault journal: %w", err)
		}
		if n, err := rt.Journal.Prune(ctx, faultJournalKeep); err != nil {
			logger.Warn().Err(err).Msg("fault journal prune failed")
		} else if n > 0 {
			logger.Info().Int64("removed", n).Msg("fault journal pruned")
		}
	}
	rt.Recorder = faultlog.NewRecorder(faultlog.RecorderOptions{
		Journal:  rt.Journal,
		DumpPath: cfg.DumpFile(),
		Logger:   log.WithComponent("faultlog"),
	})
	rt.faultLoop = executor.NewLoop("faults", executor.WithPanicHandler(func(name string, recovered any) {
		logger.Error().Str("executor", name).Interface("panic", recovered).Msg("fault handler panicked")
	}))

	opts, err := rt.AgentOptions(cfg)
	if err != nil {
		return nil, err
	}
	rt.Registry = agent.NewRegistry(opts)
	driver := sim.New(sim.Config{
		Cameras:  cfg.Camera.Count,
		Legacy:   cfg.Camera.Legacy,
		Disabled: cfg.Camera.DisabledIndices,
	})
	if err := rt.Registry.Register(cfg.Camera.Backend, driver, sim.Capabilities()); err != nil {
		return nil, err
	}

	rt.Health = health.NewManager(cfg.Version)
	rt.Health.RegisterChecker(health.NewAgentChecker(rt.Registry))
	rt.Health.RegisterChecker(health.NewDirChecker("data_dir", cfg.DataDir))
	if rt.Journal != nil {
		rt.Health.RegisterChecker(health.NewStoreChecker("fault_journal", rt.Journal))
	}

	apiCfg := api.Config{
		RateLimit:    cfg.API.RateLimit,
		AccessLog:    true,
		DefaultIndex: cfg.Camera.Index,
	}
	if cfg.Telemetry.Enabled {
		apiCfg.TracingService = cfg.Log.Service
	}
	deps := api.Deps{
		Registry: rt.Registry,
		Health:   rt.Health,
		Logger:   log.WithComponent("api"),
	}
	if rt.Journal != nil {
		deps.Faults = rt.Journal
	}
	rt.API = api.New(apiCfg, deps)

	logger.Info().
		Str("backend", cfg.Camera.Backend).
		Int("cameras", cfg.Camera.Count).
		Str("fault_policy", string(opts.FaultPolicy)).
		Str("journal", cfg.JournalFile()).
		Msg("camera runtime ready")
	return rt, nil
}

// AgentOptions derives the agent template from cfg.
func (rt *Runtime) AgentOptions(cfg config.AppConfig) (agent.Options, error) {
	policy, err := worker.ParseFaultPolicy(cfg.Camera.FaultPolicy)
	if err != nil {
		return agent.Options{}, err
	}
	return agent.Options{
		QueueCapacity: cfg.Camera.QueueCapacity,
		Timeout:       cfg.Camera.OperationTimeout,
		HistoryLength: cfg.Camera.HistoryLength,
		FaultPolicy:   policy,
		FaultHandler:  rt.Recorder,
		FaultExecutor: rt.faultLoop,
		Logger:        log.WithComponent("camera"),
	}, nil
}

// ApplyConfig applies a reloaded config. The log level changes at once;
// camera settings reach agents acquired after the reload.
func (rt *Runtime) ApplyConfig(cfg config.AppConfig) {
	log.SetLevel(cfg.Log.Level)
	opts, err := rt.AgentOptions(cfg)
	if err != nil {
		rt.logger.Warn().Err(err).Msg("reloaded camera options rejected")
		return
	}
	rt.Registry.SetOptions(opts)
}

// Handler returns the HTTP handler.
func (rt *Runtime) Handler() http.Handler {
	return rt.API.Handler()
}

// RegisterShutdownHooks hands teardown to m; it runs after the HTTP server
// has drained.
func (rt *Runtime) RegisterShutdownHooks(m Manager) {
	m.RegisterShutdownHook("runtime", rt.Close)
}

// Close tears the runtime down: the API releases its agents before the
// registry closes, and queued faults are recorded before the journal closes.
// It is safe on a partially built runtime.
func (rt *Runtime) Close(ctx context.Context) error {
	if rt.API != nil {
		rt.API.Close()
	}
	if rt.Registry != nil {
		rt.Registry.Close()
	}
	if rt.faultLoop != nil {
		rt.faultLoop.Stop()
	}
	var firstErr error
	if rt.Journal != nil {
		if err := rt.Journal.Close(); err != nil {
			firstErr = fmt.Errorf("close fault journal: %w", err)
		}
	}
	if rt.Telemetry != nil {
		if err := rt.Telemetry.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("telemetry shutdown: %w", err)
		}
	}
	return firstErr
}
