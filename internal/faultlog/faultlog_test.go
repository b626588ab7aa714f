// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package faultlog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/camagent/internal/camera/fault"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "faults.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func entry(id, agent, kind string, at time.Time) Entry {
	return Entry{ID: id, Agent: agent, Kind: kind, At: at.UTC()}
}

func TestJournalAppendAndList(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.Append(ctx, entry("a", "sim", "camera_error", base)))
	require.NoError(t, j.Append(ctx, Entry{
		ID: "b", Agent: "sim", Kind: "camera_exception", At: base.Add(time.Second),
		Error: "configure: boom", History: "HIST_ID2_1_204_HEND", Action: "ApplySettings",
		State: "Unconfigured", Panic: true,
	}))
	require.NoError(t, j.Append(ctx, entry("c", "usb", "dispatch_exception", base.Add(2*time.Second))))
	require.NoError(t, j.Append(ctx, entry("a", "sim", "camera_error", base)), "duplicate id is ignored")

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := j.List(ctx, Query{})
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, e := range all {
		ids[i] = e.ID
	}
	if diff := cmp.Diff([]string{"c", "b", "a"}, ids); diff != "" {
		t.Errorf("newest-first order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "HIST_ID2_1_204_HEND", all[1].History)
	assert.True(t, all[1].Panic)
	assert.True(t, all[1].At.Equal(base.Add(time.Second)))

	sim, err := j.List(ctx, Query{Agent: "sim", Kind: "camera_exception"})
	require.NoError(t, err)
	require.Len(t, sim, 1)
	assert.Equal(t, "b", sim[0].ID)

	recent, err := j.List(ctx, Query{Since: base.Add(time.Second), Limit: 1})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "c", recent[0].ID)
}

func TestJournalRejectsUnknownKind(t *testing.T) {
	j := openJournal(t)
	err := j.Append(context.Background(), entry("x", "sim", "meltdown", time.Now()))
	assert.Error(t, err)
}

func TestJournalPrune(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)
	base := time.Now()
	for i, id := range []string{"1", "2", "3", "4"} {
		require.NoError(t, j.Append(ctx, entry(id, "sim", "camera_error", base.Add(time.Duration(i)*time.Second))))
	}

	removed, err := j.Prune(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	left, err := j.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, "4", left[0].ID)
	assert.Equal(t, "3", left[1].ID)
	assert.NoError(t, j.Verify(ctx))
}

func TestDumpRoundTripReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dumps", "last-fault.json")
	first := entry("first", "sim", "camera_error", time.Now())
	second := entry("second", "sim", "camera_exception", time.Now())

	require.NoError(t, WriteDump(path, first))
	require.NoError(t, WriteDump(path, second))

	got, err := ReadDump(path)
	require.NoError(t, err)
	assert.Equal(t, "second", got.ID)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*"))
	require.NoError(t, err)
	assert.Len(t, matches, 1, "no temp files left behind")
}

func TestReadDumpMissing(t *testing.T) {
	_, err := ReadDump(filepath.Join(t.TempDir(), "none.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRecorderPersistsAndForwards(t *testing.T) {
	j := openJournal(t)
	dump := filepath.Join(t.TempDir(), "last-fault.json")

	var forwarded []*fault.Fault
	r := NewRecorder(RecorderOptions{
		Journal:  j,
		DumpPath: dump,
		Next:     fault.HandlerFunc(func(f *fault.Fault) { forwarded = append(forwarded, f) }),
		Logger:   zerolog.Nop(),
	})

	f := &fault.Fault{
		ID:      "f-1",
		Agent:   "sim",
		Kind:    fault.KindCameraException,
		Err:     fault.FromPanic("device exploded"),
		History: "HIST_ID1_1_HEND",
		Action:  "Open",
		State:   "Unopened",
		At:      time.Now(),
	}
	r.HandleFault(f)

	require.Len(t, forwarded, 1)
	assert.Same(t, f, forwarded[0])

	stored, err := j.List(context.Background(), Query{Agent: "sim"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "f-1", stored[0].ID)
	assert.True(t, stored[0].Panic)
	assert.Contains(t, stored[0].Error, "device exploded")

	dumped, err := ReadDump(dump)
	require.NoError(t, err)
	assert.Equal(t, "f-1", dumped.ID)

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "HIST_ID1_1_HEND", last.History)
	assert.Zero(t, r.PersistErrors())
}

func TestRecorderCountsPersistFailures(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	// The dump directory is a regular file, so every write fails.
	r := NewRecorder(RecorderOptions{DumpPath: filepath.Join(blocker, "dump.json"), Logger: zerolog.Nop()})
	r.HandleFault(&fault.Fault{ID: "f-2", Agent: "sim", Kind: fault.KindCameraError, Code: 2, At: time.Now()})

	assert.Equal(t, 1, r.PersistErrors())
	_, ok := r.Last()
	assert.True(t, ok)
}
