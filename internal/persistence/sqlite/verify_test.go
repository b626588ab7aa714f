// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sqlite

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenUsesWAL(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "wal.sqlite"), DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var mode string
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode))
	assert.Equal(t, "wal", mode)

	issues, err := Verify(ctx, db, CheckQuick)
	require.NoError(t, err)
	assert.Nil(t, issues)
}

func TestVerifyFileDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "corruptible.sqlite")

	db, err := Open(ctx, dbPath, DefaultConfig())
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE test (id INTEGER PRIMARY KEY, data BLOB);")
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		_, err = db.Exec("INSERT INTO test (data) VALUES (randomblob(200));")
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	issues, err := VerifyFile(ctx, dbPath, CheckQuick)
	require.NoError(t, err)
	require.Nil(t, issues)

	// Overwrite part of the second page.
	f, err := os.OpenFile(dbPath, os.O_RDWR, 0o644)
	require.NoError(t, err)
	junk := make([]byte, 100)
	_, _ = rand.Read(junk)
	_, err = f.WriteAt(junk, 4096)
	require.NoError(t, f.Close())
	require.NoError(t, err)

	issues, err = VerifyFile(ctx, dbPath, CheckFull)
	assert.True(t, err != nil || issues != nil, "corruption went unnoticed")
}
