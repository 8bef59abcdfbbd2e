// Package overlay consumes recording lifecycle events and drives an
// animated status surface plus audio cues, entirely in-process.
package overlay

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dictate/dictated/internal/config"
	"github.com/dictate/dictated/internal/events"
)

// Phase is one step of the overlay's appear/hold/disappear animation.
type Phase string

const (
	PhaseHidden       Phase = "hidden"
	PhaseAppearing    Phase = "appearing"
	PhaseVisible      Phase = "visible"
	PhaseLingering    Phase = "lingering"
	PhaseDisappearing Phase = "disappearing"
)

const (
	appearDuration    = 90 * time.Millisecond
	lingerDuration     = 900 * time.Millisecond
	errorHoldDuration = 1500 * time.Millisecond
	disappearDuration = 120 * time.Millisecond
	tickInterval      = 30 * time.Millisecond
)

// Automaton renders RecordingStatus/TranscriptionResult events from an
// events.Bus subscription onto a notifier surface, stepping through a
// Hidden -> Appearing -> Visible -> Lingering -> Disappearing -> Hidden
// cycle driven by a time.Ticker.
type Automaton struct {
	cfg      config.OverlayConfig
	notifier notifier
	logger   *slog.Logger
	messages textSet

	mu          sync.Mutex
	phase       Phase
	phaseSince  time.Time
	currentText string
	currentColor string
	isError     bool

	soundMu sync.Mutex
}

// NewAutomaton constructs an overlay driven by cfg's backend/sound settings.
func NewAutomaton(cfg config.OverlayConfig, logger *slog.Logger) *Automaton {
	return &Automaton{
		cfg:      cfg,
		notifier: newNotifier(cfg.Backend, cfg.DesktopAppName),
		logger:   logger,
		messages: textSetFromEnv(),
		phase:    PhaseHidden,
	}
}

// Run subscribes to bus and drives the overlay until ctx is done or sub is
// unsubscribed externally. It blocks; callers run it in its own goroutine.
func (a *Automaton) Run(ctx context.Context, sub *events.Subscription) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			a.handleEvent(ctx, e)
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Automaton) handleEvent(ctx context.Context, e events.Event) {
	switch {
	case e.Recording != nil:
		a.handleRecordingStatus(ctx, e.Recording)
	case e.Transcription != nil:
		// Text delivery itself is silent; the RecordingStatus{Idle,
		// SessionComplete:true} that follows it drives the linger-then-hide
		// animation below.
	}
}

func (a *Automaton) handleRecordingStatus(ctx context.Context, s *events.RecordingStatus) {
	if !a.cfg.Enable {
		return
	}

	switch s.State {
	case events.StateRecording:
		a.playCue(cueStart)
		a.enter(ctx, PhaseAppearing, a.messages.recording, "rgb(89b4fa)", false)
	case events.StateTranscribing:
		a.playCue(cueStop)
		a.enter(ctx, PhaseVisible, a.messages.processing, "rgb(cba6f7)", false)
	case events.StateError:
		text := a.messages.errorText
		if s.Err != nil && s.Err.Message != "" {
			text = s.Err.Message
		}
		a.playCue(cueCancel)
		a.enter(ctx, PhaseVisible, text, "rgb(f38ba8)", true)
	case events.StateIdle:
		if s.SessionComplete {
			a.playCue(cueComplete)
			a.beginLinger(ctx)
		} else if !a.holdingError() {
			a.hide(ctx)
		}
	}
}

// holdingError reports whether the overlay is still within the error-hold
// window, during which a trailing Idle{SessionComplete:false} must not
// dismiss the overlay early. tick() advances it to PhaseDisappearing once
// the hold elapses.
func (a *Automaton) holdingError() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase == PhaseVisible && a.isError
}

func (a *Automaton) enter(ctx context.Context, phase Phase, text, color string, isError bool) {
	a.mu.Lock()
	a.phase = phase
	a.phaseSince = time.Now()
	a.currentText = text
	a.currentColor = color
	a.isError = isError
	a.mu.Unlock()

	timeout := a.cfg.ErrorTimeoutMS
	if !isError || timeout <= 0 {
		timeout = 300000
	}
	a.render(ctx, 1, timeout, color, text)
}

func (a *Automaton) beginLinger(ctx context.Context) {
	a.mu.Lock()
	a.phase = PhaseLingering
	a.phaseSince = time.Now()
	a.mu.Unlock()
}

func (a *Automaton) hide(ctx context.Context) {
	a.mu.Lock()
	a.phase = PhaseHidden
	a.mu.Unlock()
	a.dismiss(ctx)
}

// tick advances time-based phase transitions: appearing settles into
// visible, lingering (and a held error) expires into disappearing, and
// disappearing expires into a dismissed, hidden overlay.
func (a *Automaton) tick(ctx context.Context) {
	a.mu.Lock()
	phase := a.phase
	since := a.phaseSince
	isError := a.isError
	a.mu.Unlock()

	switch phase {
	case PhaseAppearing:
		if time.Since(since) >= appearDuration {
			a.mu.Lock()
			a.phase = PhaseVisible
			a.phaseSince = time.Now()
			a.mu.Unlock()
		}
	case PhaseLingering:
		if time.Since(since) >= lingerDuration {
			a.mu.Lock()
			a.phase = PhaseDisappearing
			a.phaseSince = time.Now()
			a.mu.Unlock()
		}
	case PhaseVisible:
		if isError && time.Since(since) >= errorHoldDuration {
			a.mu.Lock()
			a.phase = PhaseDisappearing
			a.phaseSince = time.Now()
			a.mu.Unlock()
		}
	case PhaseDisappearing:
		if time.Since(since) >= disappearDuration {
			a.hide(ctx)
		}
	}
}

func (a *Automaton) render(ctx context.Context, icon, timeoutMS int, color, text string) {
	if !a.cfg.Enable {
		return
	}
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := a.notifier.notify(runCtx, icon, timeoutMS, color, text); err != nil {
		a.log("overlay render failed", err)
	}
}

func (a *Automaton) dismiss(ctx context.Context) {
	if !a.cfg.Enable {
		return
	}
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := a.notifier.dismiss(runCtx); err != nil {
		a.log("overlay dismiss failed", err)
	}
}

func (a *Automaton) playCue(kind cueKind) {
	if !a.cfg.SoundEnable {
		return
	}
	go func() {
		a.soundMu.Lock()
		defer a.soundMu.Unlock()
		if err := emitCue(kind); err != nil {
			a.log("overlay audio cue failed", err)
		}
	}()
}

func (a *Automaton) log(message string, err error) {
	if a.logger == nil || err == nil {
		return
	}
	a.logger.Debug(message, "error", err.Error())
}

// CurrentPhase reports the automaton's phase, for status/doctor reporting.
func (a *Automaton) CurrentPhase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// BackendLabel reports the configured rendering backend name, normalized.
func BackendLabel(cfg config.OverlayConfig) string {
	if strings.EqualFold(strings.TrimSpace(cfg.Backend), "desktop") {
		return "desktop"
	}
	return "hypr"
}
