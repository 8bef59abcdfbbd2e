package output

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dictate/dictated/internal/config"
	"github.com/stretchr/testify/require"
)

func TestCommitterCommitPrintWritesNewlineTerminatedText(t *testing.T) {
	var buf bytes.Buffer
	committer := NewCommitter(config.Default(), &buf, nil)

	err := committer.Commit(context.Background(), ModePrint, "hello world")
	require.NoError(t, err)
	require.Equal(t, "hello world\n", buf.String())
}

func TestCommitterCommitCopyUsesClipboardLibraryByDefault(t *testing.T) {
	var captured string
	orig := clipboardWriter
	clipboardWriter = func(text string) error {
		captured = text
		return nil
	}
	defer func() { clipboardWriter = orig }()

	cfg := config.Default()
	cfg.Clipboard = config.CommandConfig{}
	committer := NewCommitter(cfg, &bytes.Buffer{}, nil)
	err := committer.Commit(context.Background(), ModeCopy, "captured transcript")
	require.NoError(t, err)
	require.Equal(t, "captured transcript", captured)
}

func TestCommitterCommitCopyPrefersConfiguredCommand(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	clipboardPath := filepath.Join(t.TempDir(), "clipboard.txt")

	cfg := config.Default()
	cfg.Clipboard = config.CommandConfig{Argv: []string{scriptPath, clipboardPath}}
	committer := NewCommitter(cfg, &bytes.Buffer{}, nil)

	err := committer.Commit(context.Background(), ModeCopy, "captured transcript")
	require.NoError(t, err)

	data, err := os.ReadFile(clipboardPath)
	require.NoError(t, err)
	require.Equal(t, "captured transcript", string(data))
}

func TestCommitterCommitCopyWrapsClipboardFailure(t *testing.T) {
	orig := clipboardWriter
	clipboardWriter = func(string) error { return context.DeadlineExceeded }
	defer func() { clipboardWriter = orig }()

	cfg := config.Default()
	cfg.Clipboard = config.CommandConfig{}
	committer := NewCommitter(cfg, &bytes.Buffer{}, nil)
	err := committer.Commit(context.Background(), ModeCopy, "text")
	require.Error(t, err)
	require.Contains(t, err.Error(), "copy transcript")
}

func TestCommitterCommitUnknownModeErrors(t *testing.T) {
	committer := NewCommitter(config.Default(), &bytes.Buffer{}, nil)
	err := committer.Commit(context.Background(), Mode("bogus"), "text")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown output mode")
}

func TestCommitterCommitInsertUsesConfiguredPasteCommand(t *testing.T) {
	clipboardScript := writeStdinCaptureScript(t)
	clipboardPath := filepath.Join(t.TempDir(), "clipboard.txt")
	pasteScript := writeStdinCaptureScript(t)
	pastePath := filepath.Join(t.TempDir(), "paste-marker.txt")

	cfg := config.Default()
	cfg.Clipboard = config.CommandConfig{Argv: []string{clipboardScript, clipboardPath}}
	cfg.PasteCmd = config.CommandConfig{Argv: []string{pasteScript, pastePath}}

	committer := NewCommitter(cfg, &bytes.Buffer{}, nil)
	err := committer.Commit(context.Background(), ModeInsert, "captured transcript")
	require.NoError(t, err)

	data, err := os.ReadFile(clipboardPath)
	require.NoError(t, err)
	require.Equal(t, "captured transcript", string(data))

	_, err = os.Stat(pastePath)
	require.NoError(t, err)
}

func writeStdinCaptureScript(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "capture-stdin.sh")
	script := `#!/usr/bin/env bash
set -euo pipefail
cat > "$1"
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}
