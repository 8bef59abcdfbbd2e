package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// whisperEngine runs whole-file inference through the whisper.cpp CGO
// bindings. The model is loaded once and a fresh context is created per
// Transcribe call, matching whisper.cpp's own single-context-per-inference
// threading model.
type whisperEngine struct {
	model    whisperlib.Model
	language string
}

func newWhisperEngine(localPath string) (Transcriber, error) {
	model, err := whisperlib.New(localPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %q: %w", localPath, err)
	}
	return &whisperEngine{model: model, language: "en"}, nil
}

// whisperSampleRate is the only sample rate whisper.cpp's encoder accepts.
const whisperSampleRate = 16000

func (e *whisperEngine) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if sampleRate != whisperSampleRate {
		return "", fmt.Errorf("whisper requires %d Hz audio, got %d Hz", whisperSampleRate, sampleRate)
	}

	samples := pcmToFloat32Mono(pcm)

	wctx, err := e.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("create whisper context: %w", err)
	}

	if err := wctx.SetLanguage(e.language); err != nil {
		return "", fmt.Errorf("set whisper language: %w", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

func (e *whisperEngine) Close() error {
	if e.model == nil {
		return nil
	}
	return e.model.Close()
}

// pcmToFloat32Mono converts raw little-endian s16 mono PCM to the [-1, 1]
// float32 samples whisper.cpp expects.
func pcmToFloat32Mono(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}
