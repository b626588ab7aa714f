// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_ServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "camagent-test", Version: "v0.0.1"})

	l := WithComponent("worker")
	l.Info().Str(FieldAction, "open").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "camagent-test", entry["service"])
	assert.Equal(t, "v0.0.1", entry["version"])
	assert.Equal(t, "worker", entry[FieldComponent])
	assert.Equal(t, "open", entry[FieldAction])
}

func TestSetLevel_Fallbacks(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	SetLevel("warn")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	SetLevel("not-a-level")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	t.Setenv("LOG_LEVEL", "error")
	SetLevel("")
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
}

func TestWithContext_AddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithCorrelationID(ctx, "corr-9")

	l := WithContext(ctx, base)
	l.Info().Msg("x")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry[FieldRequestID])
	assert.Equal(t, "corr-9", entry[FieldCorrelationID])
}

func TestContextHelpers_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract
	assert.Equal(t, "", RequestIDFromContext(nil))
	//nolint:staticcheck // nil context is part of the contract
	ctx := ContextWithRequestID(nil, "abc")
	assert.Equal(t, "abc", RequestIDFromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestWithComponentFromContext_KeepsRequestID(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf})

	ctx := ContextWithRequestID(context.Background(), "req-7")
	l := WithComponentFromContext(ctx, "api")
	l.Info().Msg("x")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-7", entry[FieldRequestID])
	assert.Equal(t, "api", entry[FieldComponent])
}
