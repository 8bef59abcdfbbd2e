// Package app wires parsed CLI commands to the configuration, logging,
// recording, and IPC ownership machinery that make up one dictate process.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dictate/dictated/internal/audio"
	"github.com/dictate/dictated/internal/cli"
	"github.com/dictate/dictated/internal/config"
	"github.com/dictate/dictated/internal/doctor"
	"github.com/dictate/dictated/internal/engine"
	"github.com/dictate/dictated/internal/events"
	"github.com/dictate/dictated/internal/history"
	"github.com/dictate/dictated/internal/hotkey"
	"github.com/dictate/dictated/internal/ipc"
	"github.com/dictate/dictated/internal/logging"
	"github.com/dictate/dictated/internal/models"
	"github.com/dictate/dictated/internal/output"
	"github.com/dictate/dictated/internal/overlay"
	"github.com/dictate/dictated/internal/recorder"
	"github.com/dictate/dictated/internal/version"
)

// Runner holds process-level dependencies used by command handlers.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Execute is the package entrypoint used by cmd/dictate/main.go.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute parses CLI arguments, loads config/logging, and dispatches a command.
func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("dictate"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("dictate"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	if speechPlan, _, err := config.BuildSpeechPhrases(cfgLoaded.Config); err == nil {
		logger.Debug("speech context plan", "phrase_count", len(speechPlan), "phrases", speechPlan)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		modelsDir, err := config.ModelsStorageDir(cfgLoaded.Config)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		report := doctor.Run(cfgLoaded, modelsDir)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx, parsed.Format)
	case cli.CommandModels:
		return r.commandModels(ctx, cfgLoaded.Config, parsed.Args, parsed.Format)
	case cli.CommandStatus:
		return r.commandStatus(ctx, parsed.Format)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.CommandStop)
	case cli.CommandToggle:
		return r.commandToggle(ctx, cfgLoaded, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// commandDevices prints discovered input devices and key availability metadata.
func (r Runner) commandDevices(ctx context.Context, format string) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	if format == "json" {
		_ = json.NewEncoder(r.Stdout).Encode(devices)
		return 0
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

// modelRow is one entry of the "models list" report.
type modelRow struct {
	ID         string `json:"id"`
	Downloaded bool   `json:"downloaded"`
	Bytes      int64  `json:"bytes,omitempty"`
	Directory  bool   `json:"directory"`
}

// commandModels dispatches "models list|download|remove <id>".
func (r Runner) commandModels(ctx context.Context, cfg config.Config, args []string, format string) int {
	dir, err := config.ModelsStorageDir(cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	store := models.NewStore(dir)

	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list":
		rows := make([]modelRow, 0, len(models.Catalog))
		for _, d := range models.Catalog {
			downloaded, err := store.IsDownloaded(d.ID)
			if err != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", err)
				return 1
			}
			row := modelRow{ID: d.ID.String(), Downloaded: downloaded, Directory: d.IsDirectory}
			if downloaded {
				row.Bytes, _ = store.StorageInfo(d.ID)
			}
			rows = append(rows, row)
		}
		if format == "json" {
			_ = json.NewEncoder(r.Stdout).Encode(rows)
			return 0
		}
		for _, row := range rows {
			state := "not downloaded"
			if row.Downloaded {
				state = fmt.Sprintf("downloaded (%d bytes)", row.Bytes)
			}
			fmt.Fprintf(r.Stdout, "%-18s %s\n", row.ID, state)
		}
		return 0

	case "download":
		if len(args) < 2 {
			fmt.Fprintln(r.Stderr, "error: models download requires a model id")
			return 2
		}
		id, err := models.ParseID(args[1])
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		progress := make(chan models.Progress, 1)
		done := make(chan error, 1)
		go func() { done <- store.Download(ctx, id, progress) }()
		for {
			select {
			case p, ok := <-progress:
				if !ok {
					continue
				}
				fmt.Fprintf(r.Stdout, "\r%s: %d/%d bytes", id, p.BytesRead, p.TotalBytes)
			case err := <-done:
				fmt.Fprintln(r.Stdout)
				if err != nil {
					fmt.Fprintf(r.Stderr, "error: %v\n", err)
					return 1
				}
				fmt.Fprintf(r.Stdout, "%s downloaded\n", id)
				return 0
			}
		}

	case "remove":
		if len(args) < 2 {
			fmt.Fprintln(r.Stderr, "error: models remove requires a model id")
			return 2
		}
		id, err := models.ParseID(args[1])
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if err := store.Remove(id); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(r.Stdout, "%s removed\n", id)
		return 0

	default:
		fmt.Fprintf(r.Stderr, "error: unknown models subcommand %q\n", args[0])
		return 2
	}
}

// commandStatus queries the active owner (if any) and prints session state.
func (r Runner) commandStatus(ctx context.Context, format string) int {
	state := "idle"

	socketPath, err := ipc.RuntimeSocketPath()
	if err == nil {
		resp, handled, forwardErr := tryForward(ctx, socketPath, ipc.CommandStatus)
		if handled {
			if forwardErr != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", forwardErr)
				return 1
			}
			if resp.State != "" {
				state = resp.State
			}
		}
	}

	if format == "json" {
		_ = json.NewEncoder(r.Stdout).Encode(struct {
			State string `json:"state"`
		}{State: state})
		return 0
	}
	fmt.Fprintln(r.Stdout, state)
	return 0
}

// forwardOrFail forwards a command to the active owner and fails when no owner exists.
func (r Runner) forwardOrFail(ctx context.Context, command ipc.Command) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active dictate session\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// commandToggle forwards to an existing owner, or becomes the owner: it
// wires the recording machine, registers the configured hotkey and overlay,
// performs the toggle this invocation requested, and then keeps serving
// IPC/hotkey toggles for the life of the process (the recording machine has
// no terminal state — it is a long-lived daemon once started, not a
// one-shot session like the teacher's Controller.Run).
func (r Runner) commandToggle(ctx context.Context, cfgLoaded config.Loaded, logger *slog.Logger) int {
	cfg := cfgLoaded.Config

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandToggle)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.Message != "" {
			fmt.Fprintln(r.Stdout, resp.Message)
		}
		return 0
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			resp, _, forwardErr := tryForward(ctx, socketPath, ipc.CommandToggle)
			if forwardErr != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", forwardErr)
				return 1
			}
			if resp.Message != "" {
				fmt.Fprintln(r.Stdout, resp.Message)
			}
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	recordingsDir, err := config.RecordingsDir()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	modelsDir, err := config.ModelsStorageDir(cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	historyPath, err := config.HistoryDBPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if err := os.MkdirAll(filepath.Dir(historyPath), 0o755); err != nil {
		fmt.Fprintf(r.Stderr, "error: create history dir: %v\n", err)
		return 1
	}
	historyStore, err := history.Open(historyPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = historyStore.Close() }()

	store := models.NewStore(modelsDir)
	cache := engine.NewCache(store)
	defer func() { _ = cache.Evict() }()

	bus := events.NewBus()
	committer := output.NewCommitter(cfg, r.Stdout, logger)

	holder := newConfigHolder(cfg)
	watcher := config.NewWatcher(cfgLoaded.Path, cfgLoaded.ModTime)

	machine := recorder.New(recorder.Deps{
		Settings:      holder.get,
		Events:        bus,
		Engine:        cache,
		Output:        committer,
		History:       historyStore,
		RecordingsDir: recordingsDir,
		Logger:        logger,
	})

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	own := &owner{machine: machine, logger: logger}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, own)
	}()

	unregisterHotkey := r.registerHotkey(serverCtx, cfg, machine, logger)
	defer unregisterHotkey()

	stopOverlay := r.startOverlay(serverCtx, cfg, bus, logger)
	defer stopOverlay()

	go r.watchConfig(serverCtx, cfgLoaded.Path, watcher, holder, logger, configWatchInterval)

	outcome, toggleErr := machine.Toggle(ctx)
	if toggleErr != nil {
		serverCancel()
		<-serverErrCh
		fmt.Fprintf(r.Stderr, "error: %v\n", toggleErr)
		return 1
	}
	logger.Info("owner session started", "outcome", outcome)

	<-ctx.Done()
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	return 0
}

// configHolder publishes the settings snapshot recorder.Machine reads at the
// start of each operation (spec.md §9: "consumers should read a coherent
// snapshot ... and not re-read partway through"), while letting watchConfig
// swap in a freshly reloaded one without the recorder package knowing
// anything changed.
type configHolder struct {
	v atomic.Value
}

func newConfigHolder(cfg config.Config) *configHolder {
	h := &configHolder{}
	h.v.Store(cfg)
	return h
}

func (h *configHolder) get() config.Config { return h.v.Load().(config.Config) }

func (h *configHolder) set(cfg config.Config) { h.v.Store(cfg) }

// configWatchInterval bounds how often watchConfig polls the settings file's
// mtime for an external edit.
const configWatchInterval = 2 * time.Second

// watchConfig polls watcher every interval and, on an externally changed
// settings file, reloads it from configPath and publishes the result through
// holder for the next operation to read. This is the daemon-side wiring of
// spec.md §6's Settings collaborator (check_externally_changed/mark_synced):
// commandToggle owns the process for as long as it runs, so it is the only
// place that can poll for a hand-edited config.toml while recording stays
// live.
func (r Runner) watchConfig(ctx context.Context, configPath string, watcher *config.Watcher, holder *configHolder, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := watcher.ExternallyChanged()
			if err != nil {
				logger.Warn("config watch stat failed", "error", err.Error())
				continue
			}
			if !changed {
				continue
			}

			loaded, err := config.Load(configPath)
			if err != nil {
				logger.Warn("config reload failed", "error", err.Error())
				continue
			}
			for _, w := range loaded.Warnings {
				logger.Warn("config warning", "line", w.Line, "message", w.Message)
			}

			holder.set(loaded.Config)
			if err := watcher.MarkSynced(); err != nil {
				logger.Warn("config mark synced failed", "error", err.Error())
				continue
			}
			logger.Info("config reloaded", "path", loaded.Path)
		}
	}
}

// registerHotkey binds the configured global shortcut to machine.Toggle
// through the best backend available in this session, per spec.md §4.5.
// A missing configuration or a backend that cannot register leaves the
// daemon running, reachable through the CLI and IPC only.
func (r Runner) registerHotkey(ctx context.Context, cfg config.Config, machine *recorder.Machine, logger *slog.Logger) func() {
	if strings.TrimSpace(cfg.Hotkey.Shortcut) == "" {
		return func() {}
	}

	backend := hotkey.Detect()
	if !backend.CanRegister() {
		logger.Warn("hotkey registration unavailable", "backend", backend.Name())
		return func() {}
	}

	chord, err := hotkey.ParseChord(cfg.Hotkey.Shortcut)
	if err != nil {
		logger.Warn("invalid hotkey shortcut", "shortcut", cfg.Hotkey.Shortcut, "error", err.Error())
		return func() {}
	}

	// Register's own ctx stays long-lived (it gates the activation channel's
	// entire lifetime), but the registration handshake itself must not stall
	// owner startup past hotkey.RegistrationTimeout.
	type registerResult struct {
		activations <-chan struct{}
		err         error
	}
	resultCh := make(chan registerResult, 1)
	go func() {
		activations, err := backend.Register(ctx, chord)
		resultCh <- registerResult{activations: activations, err: err}
	}()

	var activations <-chan struct{}
	select {
	case res := <-resultCh:
		activations, err = res.activations, res.err
	case <-time.After(hotkey.RegistrationTimeout):
		err = hotkey.ErrRegistrationTimeout
	}
	if err != nil {
		logger.Warn("hotkey registration failed", "backend", backend.Name(), "error", err.Error())
		return func() {}
	}

	go func() {
		for range activations {
			if _, err := machine.Toggle(context.Background()); err != nil {
				logger.Warn("hotkey-triggered toggle failed", "error", err.Error())
			}
		}
	}()

	return func() { _ = backend.Unregister() }
}

// startOverlay subscribes the overlay automaton to the event bus when
// enabled and runs it detached until ctx is done.
func (r Runner) startOverlay(ctx context.Context, cfg config.Config, bus *events.Bus, logger *slog.Logger) func() {
	if !cfg.Overlay.Enable {
		return func() {}
	}

	automaton := overlay.NewAutomaton(cfg.Overlay, logger)
	sub := bus.Subscribe()
	go automaton.Run(ctx, sub)

	return func() { sub.Unsubscribe() }
}

// tryForward attempts to send a command to an existing owner and classifies outcome.
//
// handled=false means there was no active owner to handle the request.
func tryForward(ctx context.Context, socketPath string, command ipc.Command) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

// isSocketMissing reports whether forwarding failed because the owner socket is absent.
func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

// isConnectionRefused reports whether forwarding failed because no owner is listening.
func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
