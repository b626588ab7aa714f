// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/camagent/internal/config"
	"github.com/ManuGH/camagent/internal/faultlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: "+dir+"\n"+body), 0o600))
	return dir, path
}

func TestConfigValidate(t *testing.T) {
	_, good := writeConfig(t, "camera:\n  queue_capacity: 32\n")
	_, bad := writeConfig(t, "camera:\n  queue_capacity: 1\n")
	_, unknown := writeConfig(t, "camera:\n  warp_drive: true\n")

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantErr  string
	}{
		{"valid", good, 0, ""},
		{"out of range", bad, 1, "camera.queue_capacity"},
		{"unknown key", unknown, 1, "warp_drive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := runConfigCLI([]string{"validate", "-f", tt.path}, &stdout, &stderr)
			assert.Equal(t, tt.wantCode, code, stderr.String())
			if tt.wantErr != "" {
				assert.Contains(t, stderr.String(), tt.wantErr)
			} else {
				assert.Contains(t, stdout.String(), "is valid")
			}
		})
	}
}

func TestConfigDumpEffective(t *testing.T) {
	_, path := writeConfig(t, "camera:\n  operation_timeout: 2s\n")
	t.Setenv("CAMAGENT_API_RATE_LIMIT", "7")

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, runConfigCLI([]string{"dump", "-f", path}, &stdout, &stderr), stderr.String())

	var got config.AppConfig
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, 2*time.Second, got.Camera.OperationTimeout)
	assert.Equal(t, 7, got.API.RateLimit, "environment wins over the file")
	assert.Equal(t, config.DefaultQueueCapacity, got.Camera.QueueCapacity)

	stdout.Reset()
	require.Equal(t, 0, runConfigCLI([]string{"dump", "-f", path, "--format", "json"}, &stdout, &stderr))
	assert.True(t, json.Valid(stdout.Bytes()))

	assert.Equal(t, 2, runConfigCLI([]string{"dump", "-f", path, "--format", "toml"}, &stdout, &stderr))
	assert.Equal(t, 2, runConfigCLI([]string{"explode"}, &stdout, &stderr))
}

func TestFaultsCommands(t *testing.T) {
	dir, path := writeConfig(t, "")
	cfg, err := config.NewLoader(path, "test").Load()
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, runFaultsCLI([]string{"last", "-f", path}, &stdout, &stderr), stderr.String())
	assert.Contains(t, stdout.String(), "No fault recorded")

	ctx := context.Background()
	j, err := faultlog.Open(ctx, cfg.JournalFile())
	require.NoError(t, err)
	at := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, j.Append(ctx, faultlog.Entry{ID: "a", Agent: "sim", Kind: "camera_error", Code: 100, At: at}))
	require.NoError(t, j.Append(ctx, faultlog.Entry{ID: "b", Agent: "sim", Kind: "camera_exception", Error: "bus reset", At: at.Add(time.Minute)}))
	require.NoError(t, j.Close())
	require.NoError(t, faultlog.WriteDump(cfg.DumpFile(), faultlog.Entry{ID: "b", Agent: "sim", Kind: "camera_exception", At: at}))

	stdout.Reset()
	require.Equal(t, 0, runFaultsCLI([]string{"list", "-f", path}, &stdout, &stderr), stderr.String())
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "bus reset", "newest first")

	stdout.Reset()
	require.Equal(t, 0, runFaultsCLI([]string{"list", "-f", path, "--kind", "camera_error", "--json"}, &stdout, &stderr))
	var entries []faultlog.Entry
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].ID)

	stdout.Reset()
	require.Equal(t, 0, runFaultsCLI([]string{"last", "-f", path}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), `"id": "b"`)

	stdout.Reset()
	require.Equal(t, 0, runFaultsCLI([]string{"verify", "-f", path, "--full"}, &stdout, &stderr), stderr.String())
	assert.Contains(t, stdout.String(), "passed the full check")
	assert.FileExists(t, filepath.Join(dir, config.DefaultJournalPath))
}
