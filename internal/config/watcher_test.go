package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestWatcherDetectsExternalChangeThenMarkSynced exercises spec.md §8
// Scenario 5: after mark_synced, an on-disk modification makes
// check_externally_changed report true, and a further mark_synced clears it.
func TestWatcherDetectsExternalChangeThenMarkSynced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("output_mode = \"copy\"\n"), 0o644))

	w := NewWatcher(path, time.Now().Add(-time.Hour))

	require.NoError(t, w.MarkSynced())
	changed, err := w.ExternallyChanged()
	require.NoError(t, err)
	require.False(t, changed)

	// Ensure the rewritten file gets a strictly later mtime on coarse
	// filesystem clocks.
	later := time.Now().Add(time.Second)
	require.NoError(t, os.WriteFile(path, []byte("output_mode = \"print\"\n"), 0o644))
	require.NoError(t, os.Chtimes(path, later, later))

	changed, err = w.ExternallyChanged()
	require.NoError(t, err)
	require.True(t, changed)

	require.NoError(t, w.MarkSynced())
	changed, err = w.ExternallyChanged()
	require.NoError(t, err)
	require.False(t, changed)
}

func TestWatcherToleratesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	w := NewWatcher(path, time.Now())

	changed, err := w.ExternallyChanged()
	require.NoError(t, err)
	require.False(t, changed)

	require.NoError(t, w.MarkSynced())
}
