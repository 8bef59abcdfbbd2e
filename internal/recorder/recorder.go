// Package recorder owns the recording lifecycle state machine: it opens and
// releases the audio capture stream, bridges spectrum envelopes to the event
// bus, and drives the completion task (persist, transcribe, deliver, log)
// spawned off a successful stop.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dictate/dictated/internal/audio"
	"github.com/dictate/dictated/internal/config"
	"github.com/dictate/dictated/internal/engine"
	"github.com/dictate/dictated/internal/events"
	"github.com/dictate/dictated/internal/fsm"
	"github.com/dictate/dictated/internal/history"
	"github.com/dictate/dictated/internal/models"
	"github.com/dictate/dictated/internal/output"
	"github.com/dictate/dictated/internal/transcript"
)

// Outcome is the result of one Toggle call.
type Outcome string

const (
	OutcomeStarted  Outcome = "started"
	OutcomeStopping Outcome = "stopping"
	OutcomeBusy     Outcome = "busy"
)

// postStopGrace bounds how long the completion task waits for the capture
// callback to drain before it drops the stream regardless.
const postStopGrace = 100 * time.Millisecond

// Capture is the subset of audio.Capture the machine depends on; production
// wiring satisfies this with *audio.Capture, tests with a fake.
type Capture interface {
	SampleRate() int
	Chunks() <-chan []byte
	RawPCM() []byte
	Stop() error
}

// Engine runs whole-file transcription over a persisted recording.
type Engine interface {
	Transcribe(ctx context.Context, wavPath string, preferred models.ID) (engine.Result, error)
}

// Committer delivers a finished transcript through the configured output mode.
type Committer interface {
	Commit(ctx context.Context, mode output.Mode, text string) error
}

// HistoryInserter persists a finished transcription record.
type HistoryInserter interface {
	Insert(r history.Record) (int64, error)
}

// Deps wires the machine's collaborators. Every field is required in
// production; tests substitute fakes for Capture/Engine/Committer/History.
type Deps struct {
	Settings func() config.Config
	Events   *events.Bus

	SelectDevice func(ctx context.Context, input, fallback string) (audio.Selection, error)
	StartCapture func(ctx context.Context, device audio.Device, sampleRate int) (Capture, error)
	WriteWAV     func(path string, pcm []byte, sampleRate int) error
	NewSpectrum  func(sampleRate int) *audio.SpectrumAnalyzer

	Engine  Engine
	Output  Committer
	History HistoryInserter

	RecordingsDir string
	Logger        *slog.Logger
}

// activeRecording is the payload lifted atomically out of the machine on stop.
type activeRecording struct {
	capture   Capture
	spectrum  *audio.SpectrumAnalyzer
	device    audio.Device
	startedAt time.Time
	barsDone  chan struct{}

	// stopBars is closed by Toggle to end the spectrum-forwarding loop
	// synchronously, independent of when the capture stream itself stops.
	// barsStopped is closed once that loop has actually returned, so Toggle
	// can block on it and guarantee no further Recording-state spectrum
	// event reaches the bus after the Transcribing transition is published.
	stopBars    chan struct{}
	barsStopped chan struct{}
}

// Machine is the single-session recording state machine described by
// spec.md §4.1. It owns no subscriber handles: all feedback leaves through
// the event bus, and all control enters through Toggle.
type Machine struct {
	deps Deps

	mu     sync.Mutex
	phase  fsm.State
	active *activeRecording
}

// New constructs an idle machine. deps.StartCapture/SelectDevice/WriteWAV/
// NewSpectrum default to the real audio package when left nil.
func New(deps Deps) *Machine {
	if deps.SelectDevice == nil {
		deps.SelectDevice = audio.SelectDevice
	}
	if deps.StartCapture == nil {
		deps.StartCapture = func(ctx context.Context, device audio.Device, sampleRate int) (Capture, error) {
			return audio.StartCapture(ctx, device, sampleRate)
		}
	}
	if deps.WriteWAV == nil {
		deps.WriteWAV = audio.WriteWAV
	}
	if deps.NewSpectrum == nil {
		deps.NewSpectrum = audio.NewSpectrumAnalyzer
	}
	return &Machine{deps: deps, phase: fsm.StateIdle}
}

// Snapshot is a cheap, internals-free read of the current recording phase.
type Snapshot struct {
	State     fsm.State
	ElapsedMS int64
}

// Snapshot returns the current phase and elapsed recording time.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{State: m.phase, ElapsedMS: m.elapsedMSLocked()}
}

// ElapsedMS reports milliseconds since the current Recording session began,
// or 0 outside Recording.
func (m *Machine) ElapsedMS() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsedMSLocked()
}

func (m *Machine) elapsedMSLocked() int64 {
	if m.phase != fsm.StateRecording || m.active == nil {
		return 0
	}
	return time.Since(m.active.startedAt).Milliseconds()
}

// Toggle gates on the current phase: Idle opens a new recording, Recording
// atomically flips to Transcribing and spawns the completion task, and
// Transcribing returns Busy without blocking the caller.
func (m *Machine) Toggle(ctx context.Context) (Outcome, error) {
	m.mu.Lock()
	phase := m.phase
	switch phase {
	case fsm.StateTranscribing:
		m.mu.Unlock()
		return OutcomeBusy, nil
	case fsm.StateRecording:
		rec := m.active
		if rec == nil {
			// start() has optimistically claimed Recording but hasn't finished
			// opening the stream yet; treat a toggle landing in this narrow
			// window the same as Busy rather than racing m.complete(nil).
			m.mu.Unlock()
			return OutcomeBusy, nil
		}
		m.active = nil
		next, err := fsm.Transition(phase, fsm.EventStop)
		if err != nil {
			m.mu.Unlock()
			return "", err
		}
		m.phase = next
		m.mu.Unlock()

		// Stop the spectrum-forwarding loop and wait for it to fully exit
		// before publishing Transcribing: otherwise a Recording-state
		// spectrum event queued behind the stream's async Stop() in
		// complete() could reach the bus after this session's Transcribing
		// event, violating spec.md §5's ordering invariant.
		close(rec.stopBars)
		<-rec.barsStopped

		m.publish(events.RecordingStatus{State: events.StateTranscribing})
		go m.complete(rec)
		return OutcomeStopping, nil
	case fsm.StateIdle:
		m.mu.Unlock()
		return m.start(ctx)
	default:
		m.mu.Unlock()
		return "", fmt.Errorf("toggle: unexpected phase %q", phase)
	}
}

// start opens a new capture stream and transitions Idle->Recording.
func (m *Machine) start(ctx context.Context) (Outcome, error) {
	m.mu.Lock()
	next, err := fsm.Transition(m.phase, fsm.EventStart)
	if err != nil {
		m.mu.Unlock()
		return "", err
	}
	m.phase = next
	m.mu.Unlock()

	cfg := m.deps.Settings()

	selection, err := m.deps.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		m.toErrorAndReset("AudioDeviceUnavailable", err)
		return "", err
	}

	capture, err := m.deps.StartCapture(ctx, selection.Device, cfg.Audio.SampleRate)
	if err != nil {
		kind := "AudioDeviceUnavailable"
		if errors.Is(err, audio.ErrUnsupportedSampleRate) {
			kind = "UnsupportedSampleRate"
		}
		m.toErrorAndReset(kind, err)
		return "", err
	}

	rec := &activeRecording{
		capture:     capture,
		spectrum:    m.deps.NewSpectrum(cfg.Audio.SampleRate),
		device:      selection.Device,
		startedAt:   time.Now(),
		barsDone:    make(chan struct{}),
		stopBars:    make(chan struct{}),
		barsStopped: make(chan struct{}),
	}

	m.mu.Lock()
	m.active = rec
	m.mu.Unlock()

	go m.bridgeSpectrum(rec)
	m.publish(events.RecordingStatus{State: events.StateRecording})
	return OutcomeStarted, nil
}

// bridgeSpectrum feeds captured PCM into the spectrum analyzer and forwards
// its bar envelopes to the bus until the capture stream closes or Toggle
// signals stopBars. It always closes barsStopped on return, so Toggle can
// block on that to know no further Recording-state spectrum event will
// follow. The PCM-feeding goroutine it spawns keeps draining rec.capture's
// chunks past that point (Feed never blocks), until complete() actually
// stops the stream.
func (m *Machine) bridgeSpectrum(rec *activeRecording) {
	defer close(rec.barsStopped)

	go func() {
		for chunk := range rec.capture.Chunks() {
			rec.spectrum.Feed(chunk)
		}
		close(rec.barsDone)
	}()

	bars := rec.spectrum.Bars()
	for {
		select {
		case b, ok := <-bars:
			if !ok {
				return
			}
			var envelope [events.NBars]float32
			for i, v := range b {
				envelope[i] = float32(v)
			}
			m.publish(events.RecordingStatus{
				State:     events.StateRecording,
				Spectrum:  &envelope,
				ElapsedMS: m.ElapsedMS(),
			})
		case <-rec.barsDone:
			return
		case <-rec.stopBars:
			return
		}
	}
}

// complete runs the stop/transcribe/deliver task spawned by Toggle. It is
// never awaited by the caller: every exit path releases the capture stream
// and returns the machine to Idle.
func (m *Machine) complete(rec *activeRecording) {
	cfg := m.deps.Settings()

	stopDone := make(chan error, 1)
	go func() { stopDone <- rec.capture.Stop() }()
	select {
	case <-stopDone:
	case <-time.After(postStopGrace):
	}

	pcm := rec.capture.RawPCM()
	if len(pcm) == 0 {
		m.toErrorAndReset("EmptyRecording", errors.New("no audio captured"))
		return
	}

	wavPath := filepath.Join(m.deps.RecordingsDir, time.Now().Format("2006-01-02_15-04-05")+".wav")
	if err := os.MkdirAll(m.deps.RecordingsDir, 0o755); err != nil {
		m.toErrorAndReset("PersistenceFailed", fmt.Errorf("create recordings dir: %w", err))
		return
	}
	if err := m.deps.WriteWAV(wavPath, pcm, rec.capture.SampleRate()); err != nil {
		m.toErrorAndReset("PersistenceFailed", err)
		return
	}

	preferred, _ := models.ParseID(cfg.Models.PreferredModel)
	result, err := m.deps.Engine.Transcribe(context.Background(), wavPath, preferred)
	if err != nil {
		m.toErrorAndReset(classifyEngineError(err), err)
		return
	}

	speechPhrases, _, err := config.BuildSpeechPhrases(cfg)
	if err != nil {
		m.logf("vocab phrase plan failed", err)
	}
	vocabPhrases := make([]string, len(speechPhrases))
	for i, p := range speechPhrases {
		vocabPhrases[i] = p.Phrase
	}

	text := transcript.Assemble([]string{result.Text}, transcript.Options{
		TrailingSpace:       cfg.Transcript.TrailingSpace,
		CapitalizeSentences: cfg.Transcript.CapitalizeSentences,
		VocabPhrases:        vocabPhrases,
	})

	mode := outputModeFor(cfg.OutputMode)
	if err := m.deps.Output.Commit(context.Background(), mode, text); err != nil {
		m.logf("output delivery failed", err)
	}

	if m.deps.History != nil {
		if _, err := m.deps.History.Insert(history.Record{
			Text:           text,
			DurationMS:     result.Duration.Milliseconds(),
			ModelID:        result.ModelID.String(),
			AudioPath:      wavPath,
			OutputMode:     string(mode),
			AudioSizeBytes: int64(len(pcm)),
		}); err != nil {
			m.logf("history insert failed", err)
		}
	}

	m.deps.Events.Publish(events.Event{Transcription: &events.TranscriptionResult{
		Text:       text,
		DurationS:  result.Duration.Seconds(),
		ModelLabel: result.ModelID.String(),
	}})

	m.mu.Lock()
	next, _ := fsm.Transition(m.phase, fsm.EventTranscribed)
	m.phase = next
	m.mu.Unlock()

	m.publish(events.RecordingStatus{State: events.StateIdle, SessionComplete: true})
}

// classifyEngineError maps a Transcribe failure to the error-taxonomy kind
// spec.md §7 assigns it.
func classifyEngineError(err error) string {
	switch {
	case errors.Is(err, models.ErrNoDownloadedModel):
		return "NoDownloadedModel"
	case errors.Is(err, engine.ErrNoEngineAvailable):
		return "ModelLoadFailed"
	default:
		return "InferenceFailed"
	}
}

// toErrorAndReset transitions Fail then Reset (mirroring the teacher's
// toErrorAndReset), releasing any active recording and broadcasting the
// one-shot error event followed by the resting Idle status.
func (m *Machine) toErrorAndReset(kind string, err error) {
	m.mu.Lock()
	m.phase = fsm.StateError
	next, _ := fsm.Transition(fsm.StateError, fsm.EventReset)
	m.phase = next
	m.active = nil
	m.mu.Unlock()

	message := ""
	if err != nil {
		message = err.Error()
	}
	m.deps.Events.Publish(events.Event{Recording: &events.RecordingStatus{
		State: events.StateError,
		Err:   &events.Error{Kind: kind, Message: message},
	}})
	m.publish(events.RecordingStatus{State: events.StateIdle})
}

func (m *Machine) publish(status events.RecordingStatus) {
	m.deps.Events.Publish(events.Event{Recording: &status})
}

func (m *Machine) logf(message string, err error) {
	if m.deps.Logger == nil || err == nil {
		return
	}
	m.deps.Logger.Warn(message, "error", err.Error())
}

// outputModeFor maps config's output_mode vocabulary (print/copy/insert, or
// the aliases stdout/clipboard/paste) onto output.Mode.
func outputModeFor(cfgMode string) output.Mode {
	switch strings.ToLower(strings.TrimSpace(cfgMode)) {
	case "print", "stdout":
		return output.ModePrint
	case "insert", "paste":
		return output.ModeInsert
	default:
		return output.ModeCopy
	}
}
