// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/camagent/internal/config"
	"github.com/ManuGH/camagent/internal/daemon"
	xglog "github.com/ManuGH/camagent/internal/log"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:], os.Stdout, os.Stderr))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:], os.Stdout, os.Stderr))
		case "faults":
			os.Exit(runFaultsCLI(os.Args[2:], os.Stdout, os.Stderr))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}
	os.Exit(run(strings.TrimSpace(*configPath)))
}

func run(explicitPath string) int {
	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{
		Level:   config.DefaultLogLevel,
		Service: config.DefaultServiceName,
		Version: version,
	})
	logger := xglog.WithComponent("daemon")

	ctx, stop := daemon.WaitForShutdown()
	defer stop()

	configPath := explicitPath
	if configPath == "" {
		configPath = resolveDefaultConfigPath()
	}

	// Precedence: ENV > File > Defaults
	loader := config.NewLoader(configPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", configPath).
			Msg("failed to load configuration")
		return 1
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.Log.Level,
		Service: cfg.Log.Service,
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("daemon")

	source := "env+defaults"
	if configPath != "" {
		source = "file"
	}
	logger.Info().
		Str("event", "config.loaded").
		Str("source", source).
		Str("path", configPath).
		Msg("configuration loaded")

	rt, err := daemon.Bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Error().
			Err(err).
			Str("event", "startup.failed").
			Msg("startup failed; verify configuration and permissions")
		return 1
	}

	mgr, err := daemon.NewManager(daemon.DefaultServerConfig(cfg.API.ListenAddr), daemon.Deps{
		Logger:     logger,
		APIHandler: rt.Handler(),
	})
	if err != nil {
		_ = rt.Close(context.Background())
		logger.Error().Err(err).Msg("failed to create daemon manager")
		return 1
	}
	rt.RegisterShutdownHooks(mgr)

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.API.ListenAddr).
		Str("backend", cfg.Camera.Backend).
		Dur("operation_timeout", cfg.Camera.OperationTimeout).
		Str("data_dir", cfg.DataDir).
		Msg("starting camagentd")

	holder := config.NewHolder(cfg, loader)
	app := daemon.NewApp(logger, mgr, holder, rt.ApplyConfig)
	start := time.Now()
	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Dur("uptime", time.Since(start)).Msg("daemon stopped with error")
		return 1
	}
	logger.Info().Dur("uptime", time.Since(start)).Msg("daemon stopped")
	return 0
}

// resolveDefaultConfigPath picks ${CAMAGENT_DATA_DIR}/config.yaml when it exists.
func resolveDefaultConfigPath() string {
	dataDir := strings.TrimSpace(config.ParseString(config.EnvPrefix+"DATA_DIR", config.DefaultDataDir))
	if dataDir == "" {
		return ""
	}
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}
