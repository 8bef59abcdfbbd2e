// Package doctor runs runtime readiness diagnostics for config, tools, audio, models, and hotkeys.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/dictate/dictated/internal/audio"
	"github.com/dictate/dictated/internal/config"
	"github.com/dictate/dictated/internal/hotkey"
	"github.com/dictate/dictated/internal/hypr"
	"github.com/dictate/dictated/internal/models"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
// modelsDir is the resolved model storage root (config.ModelsStorageDir).
func Run(cfg config.Loaded, modelsDir string) Report {
	checks := []Check{}

	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	})

	checks = append(checks, checkEnv("XDG_SESSION_TYPE", func(v string) bool {
		return strings.EqualFold(strings.TrimSpace(v), "wayland")
	}, "session type is wayland", "expected XDG_SESSION_TYPE=wayland"))

	checks = append(checks, checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty"))

	if strings.TrimSpace(os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")) != "" {
		checks = append(checks, checkHyprctlVersion())
	}

	checks = append(checks, checkCommand(cfg.Config.Clipboard.Argv, "clipboard_cmd"))

	if cfg.Config.Paste.Enable {
		if len(cfg.Config.PasteCmd.Argv) > 0 {
			checks = append(checks, checkCommand(cfg.Config.PasteCmd.Argv, "paste_cmd"))
		} else {
			checks = append(checks, checkBinary("hyprctl", "default paste path requires hyprctl"))
		}
	}

	checks = append(checks, checkAudioSelection(cfg.Config))
	checks = append(checks, checkModelReady(cfg.Config, modelsDir))
	checks = append(checks, checkHotkeyBackend(cfg.Config))

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(cfg config.Config) Check {
	selection, err := audio.SelectDevice(context.Background(), cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkModelReady confirms the fallback chain resolves to at least one
// downloaded model, the minimum needed for the recorder to ever transcribe.
func checkModelReady(cfg config.Config, modelsDir string) Check {
	preferred, err := models.ParseID(cfg.Models.PreferredModel)
	if err != nil {
		return Check{Name: "models.ready", Pass: false, Message: err.Error()}
	}

	store := models.NewStore(modelsDir)
	resolved, err := store.ResolveFallback(preferred)
	if err != nil {
		return Check{Name: "models.ready", Pass: false, Message: err.Error()}
	}

	message := fmt.Sprintf("resolved %q", resolved)
	if resolved != preferred {
		message = fmt.Sprintf("%s (preferred %q not downloaded)", message, preferred)
	}
	return Check{Name: "models.ready", Pass: true, Message: message}
}

// checkHyprctlVersion confirms the hyprctl on PATH can actually reach the
// live compositor, not just that the binary exists.
func checkHyprctlVersion() Check {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tag, err := hypr.Version(ctx)
	if err != nil {
		return Check{Name: "hyprctl.version", Pass: false, Message: err.Error()}
	}
	return Check{Name: "hyprctl.version", Pass: true, Message: fmt.Sprintf("compositor reachable (%s)", tag)}
}

// checkHotkeyBackend reports which global-hotkey backend this session would
// use, without registering anything.
func checkHotkeyBackend(cfg config.Config) Check {
	backend := hotkey.Detect()
	if !backend.CanRegister() {
		return Check{
			Name:    "hotkey.backend",
			Pass:    false,
			Message: fmt.Sprintf("backend %q cannot register in this session; use the toggle command instead", backend.Name()),
		}
	}
	return Check{Name: "hotkey.backend", Pass: true, Message: fmt.Sprintf("backend %q ready for shortcut %q", backend.Name(), cfg.Hotkey.Shortcut)}
}
