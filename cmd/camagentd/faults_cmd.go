// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ManuGH/camagent/internal/config"
	"github.com/ManuGH/camagent/internal/faultlog"
	"github.com/ManuGH/camagent/internal/persistence/sqlite"
)

const faultsCommandTimeout = 30 * time.Second

// runFaultsCLI inspects the fault journal and dump offline.
func runFaultsCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printFaultsUsage(stderr)
		return 0
	}
	switch args[0] {
	case "list":
		return runFaultsList(args[1:], stdout, stderr)
	case "last":
		return runFaultsLast(args[1:], stdout, stderr)
	case "verify":
		return runFaultsVerify(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printFaultsUsage(stderr)
		return 2
	}
}

func printFaultsUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  camagentd faults list [-f config.yaml] [--agent sim] [--kind camera_error] [--limit 20] [--json]")
	fmt.Fprintln(w, "  camagentd faults last [-f config.yaml]")
	fmt.Fprintln(w, "  camagentd faults verify [-f config.yaml] [--full]")
}

func loadForFaults(file string, stderr io.Writer) (config.AppConfig, bool) {
	path := strings.TrimSpace(file)
	if path == "" {
		path = resolveDefaultConfigPath()
	}
	cfg, err := config.NewLoader(path, version).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return config.AppConfig{}, false
	}
	return cfg, true
}

func runFaultsList(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("camagentd faults list", flag.ContinueOnError)
	flags.SetOutput(stderr)
	file := configFileFlag(flags)
	agentName := flags.String("agent", "", "only faults of this backend")
	kind := flags.String("kind", "", "only faults of this kind")
	limit := flags.Int("limit", 20, "maximum entries")
	asJSON := flags.Bool("json", false, "print JSON")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, ok := loadForFaults(*file, stderr)
	if !ok {
		return 1
	}
	if cfg.JournalFile() == "" {
		fmt.Fprintln(stderr, "Fault journal is disabled (faults.journal_path is empty)")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), faultsCommandTimeout)
	defer cancel()
	j, err := faultlog.Open(ctx, cfg.JournalFile())
	if err != nil {
		fmt.Fprintf(stderr, "Open journal: %v\n", err)
		return 1
	}
	defer j.Close()

	entries, err := j.List(ctx, faultlog.Query{Agent: *agentName, Kind: *kind, Limit: *limit})
	if err != nil {
		fmt.Fprintf(stderr, "List faults: %v\n", err)
		return 1
	}
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tAGENT\tKIND\tCODE\tERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", e.At.Format(time.RFC3339), e.Agent, e.Kind, e.Code, e.Error)
	}
	_ = tw.Flush()
	return 0
}

func runFaultsLast(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("camagentd faults last", flag.ContinueOnError)
	flags.SetOutput(stderr)
	file := configFileFlag(flags)
	if err := flags.Parse(args); err != nil {
		return 2
	}
	cfg, ok := loadForFaults(*file, stderr)
	if !ok {
		return 1
	}
	if cfg.DumpFile() == "" {
		fmt.Fprintln(stderr, "Fault dump is disabled (faults.dump_path is empty)")
		return 1
	}

	e, err := faultlog.ReadDump(cfg.DumpFile())
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(stdout, "No fault recorded")
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Read dump: %v\n", err)
		return 1
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(e)
	return 0
}

func runFaultsVerify(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("camagentd faults verify", flag.ContinueOnError)
	flags.SetOutput(stderr)
	file := configFileFlag(flags)
	full := flags.Bool("full", false, "run a full integrity check instead of a quick check")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	cfg, ok := loadForFaults(*file, stderr)
	if !ok {
		return 1
	}
	if cfg.JournalFile() == "" {
		fmt.Fprintln(stderr, "Fault journal is disabled (faults.journal_path is empty)")
		return 1
	}

	mode := sqlite.CheckQuick
	if *full {
		mode = sqlite.CheckFull
	}
	ctx, cancel := context.WithTimeout(context.Background(), faultsCommandTimeout)
	defer cancel()
	issues, err := sqlite.VerifyFile(ctx, cfg.JournalFile(), mode)
	if err != nil {
		fmt.Fprintf(stderr, "Verify %s: %v\n", cfg.JournalFile(), err)
		return 1
	}
	if len(issues) > 0 {
		fmt.Fprintf(stderr, "%s has %d integrity issue(s):\n", cfg.JournalFile(), len(issues))
		for _, issue := range issues {
			fmt.Fprintf(stderr, "  %s\n", issue)
		}
		return 1
	}
	fmt.Fprintf(stdout, "%s passed the %s check\n", cfg.JournalFile(), mode)
	return 0
}
