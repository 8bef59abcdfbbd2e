package hotkey

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

var x11ModMasks = map[string]uint16{
	"SHIFT": xproto.ModMaskShift,
	"CTRL":  xproto.ModMaskControl,
	"ALT":   xproto.ModMask1,
	"SUPER": xproto.ModMask4,
}

// x11Backend grabs a global key combination directly on the root window via
// XGrabKey, delivering activations off a dedicated event-reading goroutine.
type x11Backend struct {
	mu     sync.Mutex
	conn   *xgb.Conn
	root   xproto.Window
	keycode xproto.Keycode
	mods    uint16
	done    chan struct{}
}

func newX11Backend() *x11Backend {
	return &x11Backend{}
}

func (b *x11Backend) Name() string { return "x11" }

func (b *x11Backend) CanRegister() bool {
	return os.Getenv("DISPLAY") != ""
}

func (b *x11Backend) Register(ctx context.Context, chord Chord) (<-chan struct{}, error) {
	if !b.CanRegister() {
		return nil, ErrCannotRegister
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("x11 hotkey: connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	mods, err := x11Modifiers(chord.Modifiers)
	if err != nil {
		conn.Close()
		return nil, err
	}
	keycode, err := x11Keycode(conn, setup, chord.Key)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := xproto.GrabKeyChecked(conn, true, screen.Root, mods, keycode,
		xproto.GrabModeAsync, xproto.GrabModeAsync).Check(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("x11 hotkey: grab key: %w", err)
	}

	b.mu.Lock()
	b.conn = conn
	b.root = screen.Root
	b.keycode = keycode
	b.mods = mods
	b.done = make(chan struct{})
	b.mu.Unlock()

	activations := make(chan struct{}, 1)
	go b.eventLoop(ctx, conn, activations)

	return activations, nil
}

func (b *x11Backend) eventLoop(ctx context.Context, conn *xgb.Conn, activations chan struct{}) {
	defer close(activations)
	for {
		ev, err := conn.WaitForEvent()
		if err != nil {
			return
		}
		switch ev.(type) {
		case xproto.KeyPressEvent:
			select {
			case activations <- struct{}{}:
			default:
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		default:
		}
	}
}

func (b *x11Backend) Unregister() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return nil
	}
	err := xproto.UngrabKeyChecked(b.conn, b.keycode, b.root, b.mods).Check()
	if b.done != nil {
		close(b.done)
		b.done = nil
	}
	b.conn.Close()
	b.conn = nil
	return err
}

func x11Modifiers(names []string) (uint16, error) {
	var mask uint16
	for _, name := range names {
		m, ok := x11ModMasks[strings.ToUpper(name)]
		if !ok {
			return 0, fmt.Errorf("x11 hotkey: unknown modifier %q", name)
		}
		mask |= m
	}
	return mask, nil
}

// x11Keycode maps a single-character key name to its X11 keycode by
// searching the server's keyboard mapping for the matching keysym. This
// repo only needs single printable-character keys (e.g. "Z").
func x11Keycode(conn *xgb.Conn, setup *xproto.SetupInfo, key string) (xproto.Keycode, error) {
	if len(key) != 1 {
		return 0, fmt.Errorf("x11 hotkey: unsupported key name %q", key)
	}
	target := xproto.Keysym(strings.ToLower(key)[0])

	const keysymsPerKeycode = 1
	reply, err := xproto.GetKeyboardMapping(conn,
		setup.MinKeycode,
		byte(setup.MaxKeycode-setup.MinKeycode+1)).Reply()
	if err != nil {
		return 0, fmt.Errorf("x11 hotkey: query keyboard mapping: %w", err)
	}

	perKeycode := int(reply.KeysymsPerKeycode)
	if perKeycode == 0 {
		perKeycode = keysymsPerKeycode
	}
	for i := 0; i+perKeycode <= len(reply.Keysyms); i += perKeycode {
		if reply.Keysyms[i] == target {
			return xproto.Keycode(int(setup.MinKeycode) + i/perKeycode), nil
		}
	}
	return 0, fmt.Errorf("x11 hotkey: no keycode found for key %q", key)
}
