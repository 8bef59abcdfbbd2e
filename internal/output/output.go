// Package output delivers a finished transcript through exactly one
// configured sink: stdout, the system clipboard, or synthetic keystrokes
// into the focused window. Clipboard and insert both accept a
// compositor-specific command override from config, falling back to a
// generalized autodetected strategy when none is configured.
package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	"github.com/dictate/dictated/internal/config"
)

// Mode selects how a finished transcript reaches the user.
type Mode string

const (
	ModePrint  Mode = "print"
	ModeCopy   Mode = "copy"
	ModeInsert Mode = "insert"
)

// ErrUnsupportedDisplayServer is returned by Insert dispatch when neither a
// configured override nor a recognized display server is available.
var ErrUnsupportedDisplayServer = errors.New("output: unsupported display server for insert mode")

// Committer applies one output-mode side effect to a finished transcript.
// Delivery failures are returned to the caller but never imply the
// transcript itself should be discarded: the recording state machine still
// persists history regardless of the outcome here.
type Committer struct {
	cfg    config.Config
	stdout io.Writer
	logger *slog.Logger
}

// NewCommitter constructs a committer using cfg's clipboard/paste overrides,
// writing Print-mode output to stdout.
func NewCommitter(cfg config.Config, stdout io.Writer, logger *slog.Logger) *Committer {
	return &Committer{cfg: cfg, stdout: stdout, logger: logger}
}

// Commit routes text to the sink named by mode.
func (c *Committer) Commit(ctx context.Context, mode Mode, text string) error {
	switch mode {
	case ModePrint:
		if _, err := fmt.Fprintln(c.stdout, text); err != nil {
			return fmt.Errorf("print transcript: %w", err)
		}
		return nil
	case ModeCopy:
		if err := c.copy(ctx, text); err != nil {
			c.logf("clipboard delivery failed", err)
			return fmt.Errorf("copy transcript to clipboard: %w", err)
		}
		return nil
	case ModeInsert:
		if err := c.insert(ctx, text); err != nil {
			c.logf("insert delivery failed", err)
			return fmt.Errorf("insert transcript: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown output mode %q", mode)
	}
}

// copy writes text to the clipboard, preferring a configured command
// override over the cross-platform atotto/clipboard library.
func (c *Committer) copy(ctx context.Context, text string) error {
	if len(c.cfg.Clipboard.Argv) > 0 {
		return runCommandWithInput(ctx, c.cfg.Clipboard.Argv, text)
	}
	return clipboardWriter(text)
}

// insert injects text as synthetic keystrokes into the focused window. A
// configured paste command always wins (the teacher's compositor-specific
// fallback path); otherwise the display server detected at call time
// selects the tool.
func (c *Committer) insert(ctx context.Context, text string) error {
	if len(c.cfg.PasteCmd.Argv) > 0 {
		if err := c.copy(ctx, text); err != nil {
			return fmt.Errorf("stage clipboard for configured paste command: %w", err)
		}
		return runCommandWithInput(ctx, c.cfg.PasteCmd.Argv, "")
	}

	switch detectDisplayServer() {
	case displayHyprland:
		if err := c.copy(ctx, text); err != nil {
			return fmt.Errorf("stage clipboard for hyprland paste: %w", err)
		}
		return defaultPaste(ctx, c.cfg.Paste.Shortcut)
	case displayWayland:
		return insertViaWtype(ctx, text)
	case displayX11:
		return insertViaXdotool(ctx, text)
	default:
		return ErrUnsupportedDisplayServer
	}
}

func (c *Committer) logf(message string, err error) {
	if c.logger == nil || err == nil {
		return
	}
	c.logger.Warn(message, "error", err.Error())
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
