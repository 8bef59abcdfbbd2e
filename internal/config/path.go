package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath applies CLI/XDG/home fallback rules for config.toml location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "dictate", "config.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", "dictate", "config.toml"), nil
}

// DataDir resolves the XDG data directory dictate uses for recordings,
// history, and downloaded models when no explicit override is configured.
func DataDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, "dictate"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for data dir fallback")
	}
	return filepath.Join(home, ".local", "share", "dictate"), nil
}

// RecordingsDir resolves the directory persisted WAV recordings are written to.
func RecordingsDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "recordings"), nil
}

// HistoryDBPath resolves the SQLite database file for the history store.
func HistoryDBPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// ModelsStorageDir resolves the directory model weights are downloaded to,
// honoring an explicit models.storage_dir override when cfg sets one.
func ModelsStorageDir(cfg Config) (string, error) {
	if strings.TrimSpace(cfg.Models.StorageDir) != "" {
		return cfg.Models.StorageDir, nil
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "models"), nil
}
