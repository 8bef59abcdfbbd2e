package hotkey

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseChordSplitsModifiersAndKey(t *testing.T) {
	chord, err := ParseChord("SUPER,Z")
	require.NoError(t, err)
	require.Equal(t, []string{"SUPER"}, chord.Modifiers)
	require.Equal(t, "Z", chord.Key)
}

func TestParseChordSupportsMultipleModifiers(t *testing.T) {
	chord, err := ParseChord("CTRL,SHIFT,V")
	require.NoError(t, err)
	require.Equal(t, []string{"CTRL", "SHIFT"}, chord.Modifiers)
	require.Equal(t, "V", chord.Key)
}

func TestParseChordRejectsEmptyKey(t *testing.T) {
	_, err := ParseChord("SUPER,")
	require.Error(t, err)
}

func TestParseChordRejectsEmptyModifier(t *testing.T) {
	_, err := ParseChord("SUPER,,Z")
	require.Error(t, err)
}

func TestChordStringRoundTrips(t *testing.T) {
	chord, err := ParseChord("SUPER,SHIFT,Z")
	require.NoError(t, err)
	require.Equal(t, "SUPER,SHIFT,Z", chord.String())
}

func TestNoneBackendAlwaysRejectsRegistration(t *testing.T) {
	b := newNoneBackend()
	require.False(t, b.CanRegister())

	_, err := b.Register(context.Background(), Chord{Key: "Z"})
	require.ErrorIs(t, err, ErrCannotRegister)
	require.NoError(t, b.Unregister())
}

func TestDetectFallsBackToNoneWithoutAnySessionHints(t *testing.T) {
	t.Setenv("XDG_SESSION_TYPE", "")
	t.Setenv("WAYLAND_DISPLAY", "")
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "")
	t.Setenv("DISPLAY", "")

	backend := Detect()
	require.Equal(t, "none", backend.Name())
}

func TestDetectPrefersHyprlandWhenSignaturePresent(t *testing.T) {
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "v1/abc")

	backend := Detect()
	require.Equal(t, "hyprland", backend.Name())
}
