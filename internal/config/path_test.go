package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrefersExplicit(t *testing.T) {
	got, err := ResolvePath("/tmp/custom.toml")
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.toml", got)
}

func TestResolvePathHonorsXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdgconf")
	got, err := ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/tmp/xdgconf", "dictate", "config.toml"), got)
}

func TestDataDirHonorsXDGDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdgdata")
	got, err := DataDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/tmp/xdgdata", "dictate"), got)
}

func TestRecordingsDirNestsUnderDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdgdata")
	got, err := RecordingsDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/tmp/xdgdata", "dictate", "recordings"), got)
}

func TestHistoryDBPathNestsUnderDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdgdata")
	got, err := HistoryDBPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/tmp/xdgdata", "dictate", "history.db"), got)
}

func TestModelsStorageDirPrefersConfiguredOverride(t *testing.T) {
	cfg := Default()
	cfg.Models.StorageDir = "/opt/dictate-models"
	got, err := ModelsStorageDir(cfg)
	require.NoError(t, err)
	require.Equal(t, "/opt/dictate-models", got)
}

func TestModelsStorageDirFallsBackToDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdgdata")
	cfg := Default()
	cfg.Models.StorageDir = ""
	got, err := ModelsStorageDir(cfg)
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/tmp/xdgdata", "dictate", "models"), got)
}
