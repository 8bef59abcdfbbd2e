package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dictate/dictated/internal/audio"
	"github.com/dictate/dictated/internal/config"
	"github.com/dictate/dictated/internal/engine"
	"github.com/dictate/dictated/internal/events"
	"github.com/dictate/dictated/internal/fsm"
	"github.com/dictate/dictated/internal/history"
	"github.com/dictate/dictated/internal/models"
	"github.com/dictate/dictated/internal/output"
	"github.com/stretchr/testify/require"
)

type fakeCapture struct {
	sampleRate int
	chunks     chan []byte
	rawPCM     []byte
	stopDelay  time.Duration

	mu      sync.Mutex
	stopped bool
}

func newFakeCapture(sampleRate int, pcm []byte) *fakeCapture {
	return &fakeCapture{sampleRate: sampleRate, chunks: make(chan []byte), rawPCM: pcm}
}

func (f *fakeCapture) SampleRate() int       { return f.sampleRate }
func (f *fakeCapture) Chunks() <-chan []byte { return f.chunks }
func (f *fakeCapture) RawPCM() []byte        { return f.rawPCM }
func (f *fakeCapture) Stop() error {
	if f.stopDelay > 0 {
		time.Sleep(f.stopDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		f.stopped = true
		close(f.chunks)
	}
	return nil
}

type fakeEngine struct {
	result engine.Result
	err    error
	gate   chan struct{}
}

func (f *fakeEngine) Transcribe(context.Context, string, models.ID) (engine.Result, error) {
	if f.gate != nil {
		<-f.gate
	}
	return f.result, f.err
}

type fakeCommitter struct {
	mu   sync.Mutex
	mode output.Mode
	text string
	err  error
}

func (f *fakeCommitter) Commit(_ context.Context, mode output.Mode, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode, f.text = mode, text
	return f.err
}

func (f *fakeCommitter) last() (output.Mode, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode, f.text
}

type fakeHistory struct {
	mu      sync.Mutex
	records []history.Record
}

func (f *fakeHistory) Insert(r history.Record) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return int64(len(f.records)), nil
}

func (f *fakeHistory) all() []history.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]history.Record(nil), f.records...)
}

func testDeps(t *testing.T, capture Capture, eng Engine) (Deps, *fakeCommitter, *fakeHistory, *events.Bus) {
	t.Helper()

	committer := &fakeCommitter{}
	hist := &fakeHistory{}
	bus := events.NewBus()

	deps := Deps{
		Settings: func() config.Config {
			cfg := config.Default()
			cfg.Models.PreferredModel = "parakeet:v3"
			return cfg
		},
		Events: bus,
		SelectDevice: func(context.Context, string, string) (audio.Selection, error) {
			return audio.Selection{Device: audio.Device{ID: "fake", Available: true}}, nil
		},
		StartCapture: func(context.Context, audio.Device, int) (Capture, error) {
			return capture, nil
		},
		WriteWAV: func(string, []byte, int) error {
			return nil
		},
		NewSpectrum:   audio.NewSpectrumAnalyzer,
		Engine:        eng,
		Output:        committer,
		History:       hist,
		RecordingsDir: t.TempDir(),
	}
	return deps, committer, hist, bus
}

func awaitSnapshot(t *testing.T, m *Machine, want fsm.State, timeout time.Duration) Snapshot {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		snap := m.Snapshot()
		if snap.State == want {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for state %q, last seen %q", want, snap.State)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestToggleFromIdleStartsRecording(t *testing.T) {
	capture := newFakeCapture(16000, []byte{1, 2, 3, 4})
	deps, _, _, _ := testDeps(t, capture, &fakeEngine{result: engine.Result{Text: "hello", ModelID: models.ID{Engine: models.EngineParakeet, Variant: "v3"}}})
	m := New(deps)

	outcome, err := m.Toggle(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeStarted, outcome)
	require.Equal(t, fsm.StateRecording, m.Snapshot().State)
}

func TestToggleFromRecordingStopsAndCompletesHappyPath(t *testing.T) {
	capture := newFakeCapture(16000, []byte{1, 2, 3, 4})
	deps, committer, hist, bus := testDeps(t, capture, &fakeEngine{result: engine.Result{
		Text:     "hello world",
		ModelID:  models.ID{Engine: models.EngineParakeet, Variant: "v3"},
		Duration: 500 * time.Millisecond,
	}})
	m := New(deps)

	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	_, err := m.Toggle(context.Background())
	require.NoError(t, err)

	outcome, err := m.Toggle(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeStopping, outcome)

	awaitSnapshot(t, m, fsm.StateIdle, time.Second)

	mode, text := committer.last()
	require.Equal(t, output.ModeCopy, mode)
	require.Equal(t, "hello world", text)

	records := hist.all()
	require.Len(t, records, 1)
	require.Equal(t, "hello world", records[0].Text)
	require.Equal(t, "parakeet:v3", records[0].ModelID)

	var sawSessionComplete bool
	drain:
	for {
		select {
		case e := <-sub.Events():
			if e.Recording != nil && e.Recording.SessionComplete {
				sawSessionComplete = true
			}
		default:
			break drain
		}
	}
	require.True(t, sawSessionComplete, "expected a session_complete RecordingStatus event")
}

func TestToggleWhileTranscribingReturnsBusy(t *testing.T) {
	capture := newFakeCapture(16000, []byte{1, 2, 3, 4})
	gate := make(chan struct{})
	deps, _, _, _ := testDeps(t, capture, &fakeEngine{
		result: engine.Result{Text: "hello", ModelID: models.ID{Engine: models.EngineParakeet, Variant: "v3"}},
		gate:   gate,
	})
	m := New(deps)

	_, err := m.Toggle(context.Background())
	require.NoError(t, err)

	outcome, err := m.Toggle(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeStopping, outcome)

	awaitSnapshot(t, m, fsm.StateTranscribing, time.Second)

	outcome, err = m.Toggle(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeBusy, outcome)

	close(gate)
	awaitSnapshot(t, m, fsm.StateIdle, time.Second)
}

func TestCompletionWithEmptyRecordingGoesToErrorThenIdle(t *testing.T) {
	capture := newFakeCapture(16000, nil)
	deps, committer, hist, bus := testDeps(t, capture, &fakeEngine{})
	m := New(deps)

	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	_, err := m.Toggle(context.Background())
	require.NoError(t, err)
	_, err = m.Toggle(context.Background())
	require.NoError(t, err)

	awaitSnapshot(t, m, fsm.StateIdle, time.Second)

	_, text := committer.last()
	require.Empty(t, text)
	require.Empty(t, hist.all())

	var sawError bool
	drain:
	for {
		select {
		case e := <-sub.Events():
			if e.Recording != nil && e.Recording.State == events.StateError {
				sawError = true
			}
		default:
			break drain
		}
	}
	require.True(t, sawError, "expected an error RecordingStatus event")
}

func TestCompletionWithNoDownloadedModelGoesToErrorThenIdle(t *testing.T) {
	capture := newFakeCapture(16000, []byte{1, 2, 3, 4})
	deps, _, hist, _ := testDeps(t, capture, &fakeEngine{err: models.ErrNoDownloadedModel})
	m := New(deps)

	_, err := m.Toggle(context.Background())
	require.NoError(t, err)
	_, err = m.Toggle(context.Background())
	require.NoError(t, err)

	awaitSnapshot(t, m, fsm.StateIdle, time.Second)
	require.Empty(t, hist.all())
}

func TestToggleStartFailurePublishesErrorAndReturnsIdle(t *testing.T) {
	deps, _, _, bus := testDeps(t, nil, &fakeEngine{})
	deps.SelectDevice = func(context.Context, string, string) (audio.Selection, error) {
		return audio.Selection{}, errors.New("no devices")
	}
	m := New(deps)

	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	outcome, err := m.Toggle(context.Background())
	require.Error(t, err)
	require.Empty(t, outcome)
	require.Equal(t, fsm.StateIdle, m.Snapshot().State)

	var sawError bool
	drain:
	for {
		select {
		case e := <-sub.Events():
			if e.Recording != nil && e.Recording.State == events.StateError {
				sawError = true
			}
		default:
			break drain
		}
	}
	require.True(t, sawError)
}

func TestToggleStopOrdersSpectrumBeforeTranscribing(t *testing.T) {
	capture := newFakeCapture(16000, []byte{1, 2, 3, 4})
	capture.stopDelay = 150 * time.Millisecond // longer than postStopGrace
	deps, _, _, bus := testDeps(t, capture, &fakeEngine{result: engine.Result{
		Text:    "hello world",
		ModelID: models.ID{Engine: models.EngineParakeet, Variant: "v3"},
	}})
	m := New(deps)

	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	_, err := m.Toggle(context.Background())
	require.NoError(t, err)

	// Keep feeding PCM chunks concurrently with the stop call, racing the
	// spectrum-forwarding loop against capture.Stop()'s delay. Stop() closes
	// capture.chunks from under us, so a send landing on the closed channel
	// is expected and swallowed via recover rather than treated as a bug.
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		defer func() { _ = recover() }()
		for i := 0; i < 50; i++ {
			select {
			case capture.chunks <- make([]byte, 4096):
			case <-time.After(10 * time.Millisecond):
				return
			}
		}
	}()

	outcome, err := m.Toggle(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeStopping, outcome)

	awaitSnapshot(t, m, fsm.StateIdle, 2*time.Second)
	<-feedDone

	var sawTranscribing bool
	drain:
	for {
		select {
		case e := <-sub.Events():
			if e.Recording == nil {
				continue
			}
			if e.Recording.State == events.StateTranscribing {
				sawTranscribing = true
			}
			if e.Recording.State == events.StateRecording {
				require.False(t, sawTranscribing, "a Recording-state event must never be observed after Transcribing within a session")
			}
		default:
			break drain
		}
	}
	require.True(t, sawTranscribing, "expected a Transcribing RecordingStatus event")
}

func TestClassifyEngineError(t *testing.T) {
	require.Equal(t, "NoDownloadedModel", classifyEngineError(models.ErrNoDownloadedModel))
	require.Equal(t, "ModelLoadFailed", classifyEngineError(engine.ErrNoEngineAvailable))
	require.Equal(t, "InferenceFailed", classifyEngineError(errors.New("boom")))
}

func TestOutputModeForMapsConfigVocabulary(t *testing.T) {
	require.Equal(t, output.ModePrint, outputModeFor("stdout"))
	require.Equal(t, output.ModeCopy, outputModeFor("clipboard"))
	require.Equal(t, output.ModeInsert, outputModeFor("paste"))
	require.Equal(t, output.ModeCopy, outputModeFor("unknown"))
}
