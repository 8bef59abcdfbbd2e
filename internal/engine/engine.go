// Package engine resolves a preferred model to a loaded ASR backend and runs
// single-shot transcription over a finished recording.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dictate/dictated/internal/models"
)

// ErrNoEngineAvailable indicates the cache has no loader registered for a
// model id's engine family. A missing download is reported separately as
// models.ErrNoDownloadedModel.
var ErrNoEngineAvailable = errors.New("no transcription engine available")

// Transcriber runs whole-file inference over 16-bit mono PCM at the sample
// rate it was recorded at; the cache does not resample it.
type Transcriber interface {
	// Transcribe decodes pcm (raw s16le mono samples, no WAV header) and
	// returns the recognized text.
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error)

	// Close releases native resources held by the backend.
	Close() error
}

// loader constructs a Transcriber for one model id, given its on-disk path.
type loader func(localPath string) (Transcriber, error)

var loaders = map[models.Engine]loader{
	models.EngineWhisper:   newWhisperEngine,
	models.EngineParakeet:  newParakeetSherpaEngine,
	models.EngineMoonshine: newMoonshineSherpaEngine,
}

// Result is the outcome of one Cache.Transcribe call.
type Result struct {
	Text     string
	ModelID  models.ID
	Duration time.Duration
}

// Cache holds at most one loaded engine at a time. Loading a different model
// id evicts and closes whatever was previously loaded: model weights are
// large enough that this module never keeps two resident concurrently. The
// cache's lock is held for the entire Transcribe call, not just the load
// step: engines are not assumed thread-safe, so the lock also serializes
// concurrent inference against the same resident engine.
type Cache struct {
	store *models.Store

	mu     sync.Mutex
	loadID models.ID
	engine Transcriber
}

// NewCache constructs an engine cache backed by store for resolving model
// paths and fallbacks.
func NewCache(store *models.Store) *Cache {
	return &Cache{store: store}
}

// Transcribe resolves preferred (falling back per the store's policy when it
// isn't downloaded), lazily loads the corresponding backend if it isn't
// already resident, and runs inference over the finished recording at
// wavPath. The cache always operates on a persisted WAV file rather than a
// live stream, so every backend sees the same decode step regardless of how
// the recording was captured.
//
// The cache's lock is held for the whole call, spanning load and inference:
// spec.md §5 requires the slot lock to serialize at-most-one concurrent
// inference, since engines are not assumed thread-safe.
func (c *Cache) Transcribe(ctx context.Context, wavPath string, preferred models.ID) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.store.ResolveFallback(preferred)
	if err != nil {
		return Result{}, fmt.Errorf("resolve model: %w", err)
	}

	eng, err := c.ensureLoadedLocked(id)
	if err != nil {
		return Result{}, err
	}

	pcm, sampleRate, err := decodeWAV(wavPath)
	if err != nil {
		return Result{}, fmt.Errorf("decode recording %q: %w", wavPath, err)
	}

	start := time.Now()
	text, err := eng.Transcribe(ctx, pcm, sampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("transcribe with %s: %w", id, err)
	}

	return Result{Text: text, ModelID: id, Duration: time.Since(start)}, nil
}

// ensureLoadedLocked must be called with c.mu held.
func (c *Cache) ensureLoadedLocked(id models.ID) (Transcriber, error) {
	if c.engine != nil && c.loadID == id {
		return c.engine, nil
	}

	load, ok := loaders[id.Engine]
	if !ok {
		return nil, fmt.Errorf("%w: no loader registered for engine %q", ErrNoEngineAvailable, id.Engine)
	}

	path, err := c.store.LocalPath(id)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path for %s: %w", id, err)
	}

	// Unload whatever is resident before attempting the new load: a failed
	// construction must leave the slot empty, not stale.
	if c.engine != nil {
		c.engine.Close()
		c.engine = nil
		c.loadID = models.ID{}
	}

	eng, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("load engine %s: %w", id, err)
	}

	c.engine = eng
	c.loadID = id
	return eng, nil
}

// Evict releases any loaded engine. Callers use this to free native memory
// between long idle periods.
func (c *Cache) Evict() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine == nil {
		return nil
	}
	err := c.engine.Close()
	c.engine = nil
	c.loadID = models.ID{}
	return err
}

// Loaded reports the model id currently resident in the cache, if any.
func (c *Cache) Loaded() (models.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadID, c.engine != nil
}
