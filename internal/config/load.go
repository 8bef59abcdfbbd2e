package config

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
	ModTime  time.Time
}

// Load resolves, reads, parses, and validates the runtime configuration.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	base := Default()
	warnings := make([]Warning, 0)

	info, statErr := os.Stat(resolvedPath)
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
		}
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
		return Loaded{
			Path:     resolvedPath,
			Config:   base,
			Warnings: warnings,
			Exists:   false,
		}, nil
	}

	cfg, parseWarnings, err := Parse(string(content), base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}
	warnings = append(warnings, parseWarnings...)

	validateWarnings, err := Validate(cfg)
	if err != nil {
		return Loaded{}, fmt.Errorf("validate config %q: %w", resolvedPath, err)
	}
	warnings = append(warnings, validateWarnings...)

	var modTime time.Time
	if statErr == nil {
		modTime = info.ModTime()
	}

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
		ModTime:  modTime,
	}, nil
}

// ExternallyChanged reports whether the file at path has a newer mtime than since.
func ExternallyChanged(path string, since time.Time) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat config %q: %w", path, err)
	}
	return info.ModTime().After(since), nil
}

// Watcher tracks the on-disk mtime of one settings file against the last
// value the owning process synced, satisfying spec.md §6's Settings
// collaborator contract: check_externally_changed() → bool; mark_synced().
// A Watcher holds its own state rather than requiring the caller to thread
// a "since" timestamp through every call, so a long-lived daemon can poll it
// directly on a timer.
type Watcher struct {
	path string

	mu       sync.Mutex
	lastSync time.Time
}

// NewWatcher constructs a Watcher for path, considering synced as of initial
// (typically the mtime observed by the Load that produced the running config).
func NewWatcher(path string, initial time.Time) *Watcher {
	return &Watcher{path: path, lastSync: initial}
}

// ExternallyChanged reports whether path's mtime is newer than the last
// value recorded by MarkSynced (or the Watcher's initial mtime).
func (w *Watcher) ExternallyChanged() (bool, error) {
	w.mu.Lock()
	since := w.lastSync
	w.mu.Unlock()
	return ExternallyChanged(w.path, since)
}

// MarkSynced records path's current on-disk mtime as synced, so a
// subsequent ExternallyChanged call reports false until the file changes
// again. Called after the watcher's owner has reloaded the file's contents.
func (w *Watcher) MarkSynced() error {
	info, err := os.Stat(w.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			w.mu.Lock()
			w.lastSync = time.Time{}
			w.mu.Unlock()
			return nil
		}
		return fmt.Errorf("stat config %q: %w", w.path, err)
	}
	w.mu.Lock()
	w.lastSync = info.ModTime()
	w.mu.Unlock()
	return nil
}
