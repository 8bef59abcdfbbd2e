package hotkey

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	portalBusName      = "org.freedesktop.portal.Desktop"
	portalObjectPath   = dbus.ObjectPath("/org/freedesktop/portal/desktop")
	portalShortcutsIfc = "org.freedesktop.portal.GlobalShortcuts"
	portalRequestsIfc  = "org.freedesktop.portal.Request"
)

// portalBackend registers a shortcut through the xdg-desktop-portal
// GlobalShortcuts interface, the compositor-agnostic mechanism for Wayland
// sessions without a Hyprland-specific IPC.
type portalBackend struct {
	mu      sync.Mutex
	conn    *dbus.Conn
	session dbus.ObjectPath
	sigCh   chan *dbus.Signal
	done    chan struct{}
}

func newPortalBackend() *portalBackend {
	return &portalBackend{}
}

func (b *portalBackend) Name() string { return "wayland-portal" }

func (b *portalBackend) CanRegister() bool {
	conn, err := dbus.SessionBus()
	if err != nil {
		return false
	}
	obj := conn.Object(portalBusName, portalObjectPath)
	var version uint32
	return obj.Call("org.freedesktop.DBus.Properties.Get", 0, portalShortcutsIfc, "version").Store(&version) == nil
}

func (b *portalBackend) Register(ctx context.Context, chord Chord) (<-chan struct{}, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("portal hotkey: connect session bus: %w", err)
	}

	// The portal's CreateSession/BindShortcuts round trip waits on a
	// user-facing consent dialog in some compositors; cap it so a stalled
	// or silently-ignored portal never hangs startup.
	setupCtx, cancelSetup := context.WithTimeout(ctx, RegistrationTimeout)
	defer cancelSetup()

	obj := conn.Object(portalBusName, portalObjectPath)

	sessionToken := fmt.Sprintf("dictate_%d", os.Getpid())
	createOpts := map[string]dbus.Variant{
		"session_handle_token": dbus.MakeVariant(sessionToken),
		"handle_token":         dbus.MakeVariant("create"),
	}

	var requestPath dbus.ObjectPath
	if err := obj.Call(portalShortcutsIfc+".CreateSession", 0, createOpts).Store(&requestPath); err != nil {
		conn.Close()
		return nil, fmt.Errorf("portal hotkey: CreateSession: %w", err)
	}

	sessionHandle, err := b.awaitRequestResponse(setupCtx, conn, requestPath, "session_handle")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("portal hotkey: await session: %w", err)
	}

	shortcuts := map[string]map[string]dbus.Variant{
		"dictate-toggle": {
			"description":      dbus.MakeVariant("Toggle dictation recording"),
			"preferred_trigger": dbus.MakeVariant(chord.String()),
		},
	}
	bindOpts := map[string]dbus.Variant{"handle_token": dbus.MakeVariant("bind")}
	var bindRequest dbus.ObjectPath
	if err := obj.Call(portalShortcutsIfc+".BindShortcuts", 0, dbus.ObjectPath(sessionHandle.(string)), shortcuts, "", bindOpts).Store(&bindRequest); err != nil {
		conn.Close()
		return nil, fmt.Errorf("portal hotkey: BindShortcuts: %w", err)
	}
	if _, err := b.awaitRequestResponse(setupCtx, conn, bindRequest, ""); err != nil {
		conn.Close()
		return nil, fmt.Errorf("portal hotkey: await bind: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(portalShortcutsIfc),
		dbus.WithMatchMember("Activated"),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("portal hotkey: subscribe to Activated: %w", err)
	}

	sigCh := make(chan *dbus.Signal, 16)
	conn.Signal(sigCh)

	activations := make(chan struct{}, 1)
	done := make(chan struct{})

	b.mu.Lock()
	b.conn = conn
	b.session = dbus.ObjectPath(sessionHandle.(string))
	b.sigCh = sigCh
	b.done = done
	b.mu.Unlock()

	go func() {
		defer close(activations)
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case sig, ok := <-sigCh:
				if !ok {
					return
				}
				if sig.Name == portalShortcutsIfc+".Activated" {
					select {
					case activations <- struct{}{}:
					default:
					}
				}
			}
		}
	}()

	return activations, nil
}

// awaitRequestResponse blocks for the portal Request object at path to emit
// its Response signal and returns the named result key (or the whole
// results map's presence, if key is empty). It gives up with
// ErrRegistrationTimeout once ctx is done, so a portal that never answers
// cannot hang registration forever.
func (b *portalBackend) awaitRequestResponse(ctx context.Context, conn *dbus.Conn, path dbus.ObjectPath, key string) (interface{}, error) {
	ch := make(chan *dbus.Signal, 1)
	conn.Signal(ch)
	defer conn.RemoveSignal(ch)

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(portalRequestsIfc),
		dbus.WithMatchMember("Response"),
	); err != nil {
		return nil, err
	}

	var sig *dbus.Signal
	select {
	case sig = <-ch:
	case <-ctx.Done():
		return nil, ErrRegistrationTimeout
	}
	if len(sig.Body) < 2 {
		return nil, fmt.Errorf("malformed portal Response signal")
	}
	results, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("malformed portal Response results")
	}
	if key == "" {
		return results, nil
	}
	v, ok := results[key]
	if !ok {
		return nil, fmt.Errorf("portal Response missing key %q", key)
	}
	return v.Value(), nil
}

func (b *portalBackend) Unregister() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return nil
	}
	if b.done != nil {
		close(b.done)
		b.done = nil
	}
	if b.sigCh != nil {
		b.conn.RemoveSignal(b.sigCh)
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}
