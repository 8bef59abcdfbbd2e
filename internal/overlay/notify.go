package overlay

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/dictate/dictated/internal/hypr"
)

// notifier renders a single replaceable status surface and can dismiss it.
type notifier interface {
	notify(ctx context.Context, icon int, timeoutMS int, color, text string) error
	dismiss(ctx context.Context) error
}

// hyprNotifier drives overlay output through Hyprland's built-in notify dispatcher.
type hyprNotifier struct{}

func (hyprNotifier) notify(ctx context.Context, icon int, timeoutMS int, color, text string) error {
	return hypr.Notify(ctx, icon, timeoutMS, color, text)
}

func (hyprNotifier) dismiss(ctx context.Context) error {
	return hypr.DismissNotify(ctx)
}

// desktopNotifier renders through the freedesktop Notifications DBus
// interface directly via godbus/dbus, replacing the teacher's busctl
// subprocess shell-out with a native session-bus call.
type desktopNotifier struct {
	appName string

	mu   sync.Mutex
	conn *dbus.Conn
	lastID uint32
}

func newDesktopNotifier(appName string) *desktopNotifier {
	if strings.TrimSpace(appName) == "" {
		appName = "dictate-overlay"
	}
	return &desktopNotifier{appName: appName}
}

func (d *desktopNotifier) dial() (*dbus.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		return d.conn, nil
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("desktop notifier: connect session bus: %w", err)
	}
	d.conn = conn
	return conn, nil
}

func (d *desktopNotifier) notify(ctx context.Context, icon int, timeoutMS int, color, text string) error {
	conn, err := d.dial()
	if err != nil {
		return err
	}

	d.mu.Lock()
	replaceID := d.lastID
	d.mu.Unlock()

	obj := conn.Object("org.freedesktop.Notifications", "/org/freedesktop/Notifications")
	call := obj.CallWithContext(ctx, "org.freedesktop.Notifications.Notify", 0,
		d.appName,
		replaceID,
		"",
		text,
		"",
		[]string{},
		map[string]dbus.Variant{},
		int32(timeoutMS),
	)
	if call.Err != nil {
		return fmt.Errorf("desktop notify: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("desktop notify: decode notification id: %w", err)
	}

	d.mu.Lock()
	d.lastID = id
	d.mu.Unlock()
	return nil
}

func (d *desktopNotifier) dismiss(ctx context.Context) error {
	conn, err := d.dial()
	if err != nil {
		return err
	}

	d.mu.Lock()
	id := d.lastID
	d.lastID = 0
	d.mu.Unlock()

	if id == 0 {
		return nil
	}

	obj := conn.Object("org.freedesktop.Notifications", "/org/freedesktop/Notifications")
	call := obj.CallWithContext(ctx, "org.freedesktop.Notifications.CloseNotification", 0, id)
	if call.Err != nil {
		return fmt.Errorf("desktop dismiss: %w", call.Err)
	}
	return nil
}

func newNotifier(backend, desktopAppName string) notifier {
	if strings.EqualFold(strings.TrimSpace(backend), "desktop") {
		return newDesktopNotifier(desktopAppName)
	}
	return hyprNotifier{}
}
