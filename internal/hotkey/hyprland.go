package hotkey

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/dictate/dictated/internal/hypr"
)

// hyprlandBackend configures a Hyprland compositor keybind that shells out
// to this binary's own `toggle` subcommand, rather than grabbing the key
// in-process. Hyprland delivers the key event to its own bind table; the
// resulting `dictate toggle` invocation reaches the running daemon over the
// IPC socket (see internal/ipc), completely independent of the channel this
// backend returns. The channel exists only so Backend stays uniform across
// implementations — on Hyprland it is never written to.
type hyprlandBackend struct {
	ctl     hypr.Controller
	bound   Chord
	done    chan struct{}
}

func newHyprlandBackend() *hyprlandBackend {
	return &hyprlandBackend{ctl: hypr.CLIController{}}
}

func (b *hyprlandBackend) Name() string { return "hyprland" }

func (b *hyprlandBackend) CanRegister() bool {
	return os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != ""
}

func (b *hyprlandBackend) Register(ctx context.Context, chord Chord) (<-chan struct{}, error) {
	if !b.CanRegister() {
		return nil, ErrCannotRegister
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("hyprland hotkey: resolve own executable: %w", err)
	}

	bindSpec := fmt.Sprintf("%s, exec, %s toggle", chord.String(), self)
	if err := runHyprctlKeyword(ctx, "bind", bindSpec); err != nil {
		return nil, fmt.Errorf("hyprland hotkey: bind %s: %w", chord, err)
	}
	if err := b.ctl.SetSubmap(ctx, "dictate"); err != nil {
		return nil, fmt.Errorf("hyprland hotkey: enter submap: %w", err)
	}

	b.bound = chord
	b.done = make(chan struct{})
	return b.done, nil
}

func (b *hyprlandBackend) Unregister() error {
	if b.bound.Key == "" {
		return nil
	}
	ctx := context.Background()
	err := runHyprctlKeyword(ctx, "unbind", b.bound.String())
	if resetErr := b.ctl.ResetSubmap(ctx); resetErr != nil && err == nil {
		err = resetErr
	}
	if b.done != nil {
		close(b.done)
		b.done = nil
	}
	b.bound = Chord{}
	return err
}

// runHyprctlKeyword issues `hyprctl keyword <name> <value>`, the mechanism
// Hyprland uses for runtime config changes including dynamic binds.
func runHyprctlKeyword(ctx context.Context, name, value string) error {
	cmd := exec.CommandContext(ctx, "hyprctl", "keyword", name, value)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("hyprctl keyword %s %q: %w (%s)", name, value, err, string(out))
	}
	return nil
}
