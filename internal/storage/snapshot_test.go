package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TestSaveLoad_RoundTrip tests that a saved blob loads back unchanged
func TestSaveLoad_RoundTrip(t *testing.T) {
	// Arrange
	store, err := NewSnapshotStore(t.TempDir(), true)
	require.NoError(t, err)

	saved := testState{Name: "wallet", Count: 42}

	// Act
	require.NoError(t, store.Save("wallet", saved))

	var loaded testState
	err = store.Load("wallet", &loaded)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

// TestLoad_MissingSnapshot tests the not-found sentinel
func TestLoad_MissingSnapshot(t *testing.T) {
	store, err := NewSnapshotStore(t.TempDir(), true)
	require.NoError(t, err)

	var state testState
	err = store.Load("never-saved", &state)

	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

// TestLoad_SchemaVersionMismatch tests that a blob written under a different
// schema version is refused rather than decoded
func TestLoad_SchemaVersionMismatch(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	store, err := NewSnapshotStore(dir, true)
	require.NoError(t, err)

	stale := []byte(`{"schemaVersion": 99, "savedAt": "2026-01-01T00:00:00Z", "state": {"name":"old","count":1}}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wallet.json"), stale, 0644))

	// Act
	var state testState
	err = store.Load("wallet", &state)

	// Assert
	assert.ErrorIs(t, err, ErrSchemaVersion)
	assert.Empty(t, state.Name, "State must not be partially decoded")
}

// TestDisabledStore tests that a disabled store neither writes nor reads
func TestDisabledStore(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	store, err := NewSnapshotStore(dir, false)
	require.NoError(t, err)

	// Act
	require.NoError(t, store.Save("wallet", testState{Name: "x"}))

	var state testState
	err = store.Load("wallet", &state)

	// Assert
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "Disabled store must not touch the directory")
}

// TestSave_Overwrite tests that re-saving replaces the previous blob
func TestSave_Overwrite(t *testing.T) {
	// Arrange
	store, err := NewSnapshotStore(t.TempDir(), true)
	require.NoError(t, err)
	require.NoError(t, store.Save("cart", testState{Name: "first", Count: 1}))

	// Act
	require.NoError(t, store.Save("cart", testState{Name: "second", Count: 2}))

	// Assert
	var loaded testState
	require.NoError(t, store.Load("cart", &loaded))
	assert.Equal(t, "second", loaded.Name)
	assert.Equal(t, 2, loaded.Count)
}

// TestSave_LeavesNoTempFiles tests that the temp file is renamed away
func TestSave_LeavesNoTempFiles(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	store, err := NewSnapshotStore(dir, true)
	require.NoError(t, err)

	// Act
	require.NoError(t, store.Save("events", testState{Name: "queue"}))

	// Assert
	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	require.Len(t, entries, 1)
	assert.Equal(t, "events.json", entries[0].Name())
}
