// Package models resolves, downloads, and tracks local ASR model storage.
package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Engine identifies one ASR backend family.
type Engine string

const (
	EngineWhisper   Engine = "whisper"
	EngineParakeet  Engine = "parakeet"
	EngineMoonshine Engine = "moonshine"
)

// ID is pure data identifying one model: an engine family plus a variant tag.
// It carries no storage or engine-lifetime coupling.
type ID struct {
	Engine  Engine
	Variant string
}

// String renders the canonical "engine:variant" model identifier.
func (id ID) String() string {
	return fmt.Sprintf("%s:%s", id.Engine, id.Variant)
}

// ParseID parses a canonical "engine:variant" identifier.
func ParseID(s string) (ID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ID{}, fmt.Errorf("invalid model id %q: expected engine:variant", s)
	}
	return ID{Engine: Engine(parts[0]), Variant: parts[1]}, nil
}

// Descriptor is one entry in the compile-time model catalog.
type Descriptor struct {
	ID          ID
	StorageName string
	IsDirectory bool
	DownloadURL string
}

// Catalog lists every model this build knows how to fetch and load.
var Catalog = []Descriptor{
	{ID: ID{EngineWhisper, "base"}, StorageName: "ggml-base.bin", DownloadURL: "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin"},
	{ID: ID{EngineWhisper, "small"}, StorageName: "ggml-small.bin", DownloadURL: "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin"},
	{ID: ID{EngineParakeet, "v3"}, StorageName: "parakeet-tdt-v3", IsDirectory: true, DownloadURL: "https://huggingface.co/csukuangfj/sherpa-onnx-nemo-parakeet-tdt-v3/resolve/main"},
	{ID: ID{EngineMoonshine, "base"}, StorageName: "moonshine-base", IsDirectory: true, DownloadURL: "https://huggingface.co/csukuangfj/sherpa-onnx-moonshine-base-en-int8/resolve/main"},
	{ID: ID{EngineMoonshine, "tiny"}, StorageName: "moonshine-tiny", IsDirectory: true, DownloadURL: "https://huggingface.co/csukuangfj/sherpa-onnx-moonshine-tiny-en-int8/resolve/main"},
}

// ErrUnknownModel indicates a model id with no catalog entry.
var ErrUnknownModel = errors.New("unknown model id")

// ErrNoDownloadedModel indicates the fallback chain exhausted every candidate.
var ErrNoDownloadedModel = errors.New("no downloaded model available")

// DescriptorFor returns the catalog entry for a model id.
func DescriptorFor(id ID) (Descriptor, error) {
	for _, d := range Catalog {
		if d.ID == id {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownModel, id)
}

// Store resolves model storage paths and performs downloads against one root directory.
type Store struct {
	root string
}

// NewStore constructs a model store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// LocalPath returns the on-disk path for a model, whether or not it's downloaded.
func (s *Store) LocalPath(id ID) (string, error) {
	d, err := DescriptorFor(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, d.StorageName), nil
}

// IsDownloaded reports whether a model's storage path exists on disk.
func (s *Store) IsDownloaded(id ID) (bool, error) {
	path, err := s.LocalPath(id)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat model path %q: %w", path, err)
	}
	return info.Size() > 0 || info.IsDir(), nil
}

// Progress reports incremental download progress for one model fetch.
type Progress struct {
	BytesRead  int64
	TotalBytes int64
}

// Download fetches a single-file model over HTTPS with progress reporting.
// Directory-backed (multi-file) models are rejected with an error; this
// package has no code path that fetches them.
func (s *Store) Download(ctx context.Context, id ID, progress chan<- Progress) error {
	d, err := DescriptorFor(id)
	if err != nil {
		return err
	}
	if d.IsDirectory {
		return fmt.Errorf("model %s is a multi-file model; fetch its files individually", id)
	}

	dest, err := s.LocalPath(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create model storage dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.DownloadURL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download model %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download model %s: HTTP %d", id, resp.StatusCode)
	}

	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp download file: %w", err)
	}

	var written int64
	buf := make([]byte, 64*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				os.Remove(tmp)
				return fmt.Errorf("write model bytes: %w", werr)
			}
			written += int64(n)
			if progress != nil {
				select {
				case progress <- Progress{BytesRead: written, TotalBytes: resp.ContentLength}:
				default:
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("read model body: %w", readErr)
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp download file: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("finalize model download: %w", err)
	}
	return nil
}

// Remove deletes a model's local storage.
func (s *Store) Remove(id ID) error {
	path, err := s.LocalPath(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove model %s: %w", id, err)
	}
	return nil
}

// StorageInfo reports total on-disk bytes used by one model's storage path.
func (s *Store) StorageInfo(id ID) (int64, error) {
	path, err := s.LocalPath(id)
	if err != nil {
		return 0, err
	}

	var total int64
	err = filepath.Walk(path, func(_ string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("walk model storage %q: %w", path, err)
	}
	return total, nil
}

// ResolveFallback returns the first downloaded model among preferred and a
// fixed fallback chain, per the recorder's model resolution policy.
func (s *Store) ResolveFallback(preferred ID) (ID, error) {
	chain := []ID{preferred,
		{EngineParakeet, "v3"},
		{EngineWhisper, "base"},
	}

	tried := make(map[ID]bool)
	for _, id := range chain {
		if tried[id] {
			continue
		}
		tried[id] = true
		if _, err := DescriptorFor(id); err != nil {
			continue
		}
		ok, err := s.IsDownloaded(id)
		if err != nil {
			return ID{}, err
		}
		if ok {
			return id, nil
		}
	}

	for _, d := range Catalog {
		if tried[d.ID] {
			continue
		}
		ok, err := s.IsDownloaded(d.ID)
		if err != nil {
			continue
		}
		if ok {
			return d.ID, nil
		}
	}

	return ID{}, ErrNoDownloadedModel
}
