package hotkey

import "context"

// noneBackend is selected when no usable hotkey mechanism exists (headless,
// unknown display server). Register always fails; the caller falls back to
// CLI-only toggling (the `dictate toggle` command).
type noneBackend struct{}

func newNoneBackend() *noneBackend { return &noneBackend{} }

func (b *noneBackend) Name() string        { return "none" }
func (b *noneBackend) CanRegister() bool   { return false }
func (b *noneBackend) Unregister() error   { return nil }

func (b *noneBackend) Register(ctx context.Context, chord Chord) (<-chan struct{}, error) {
	return nil, ErrCannotRegister
}
