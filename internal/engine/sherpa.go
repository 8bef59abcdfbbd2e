package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// sherpaEngine wraps a sherpa-onnx offline recognizer. The same wrapper
// serves both the parakeet (NeMo transducer) and moonshine model families;
// only the OfflineModelConfig construction differs between them.
type sherpaEngine struct {
	mu         sync.Mutex
	recognizer *sherpa.OfflineRecognizer
}

func newParakeetSherpaEngine(localPath string) (Transcriber, error) {
	config := &sherpa.OfflineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{
			SampleRate: whisperSampleRate,
			FeatureDim: 80,
		},
		ModelConfig: sherpa.OfflineModelConfig{
			Transducer: sherpa.OfflineTransducerModelConfig{
				Encoder: filepath.Join(localPath, "encoder.onnx"),
				Decoder: filepath.Join(localPath, "decoder.onnx"),
				Joiner:  filepath.Join(localPath, "joiner.onnx"),
			},
			Tokens:     filepath.Join(localPath, "tokens.txt"),
			ModelType:  "nemo_transducer",
			NumThreads: runtime.NumCPU(),
			Debug:      0,
			Provider:   "cpu",
		},
		DecodingMethod: "greedy_search",
	}
	return newSherpaEngine(config)
}

func newMoonshineSherpaEngine(localPath string) (Transcriber, error) {
	config := &sherpa.OfflineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{
			SampleRate: whisperSampleRate,
			FeatureDim: 80,
		},
		ModelConfig: sherpa.OfflineModelConfig{
			Moonshine: sherpa.OfflineMoonshineModelConfig{
				Preprocessor:    filepath.Join(localPath, "preprocess.onnx"),
				Encoder:         filepath.Join(localPath, "encode.onnx"),
				UncachedDecoder: filepath.Join(localPath, "uncached_decode.onnx"),
				CachedDecoder:   filepath.Join(localPath, "cached_decode.onnx"),
			},
			Tokens:     filepath.Join(localPath, "tokens.txt"),
			NumThreads: runtime.NumCPU(),
			Debug:      0,
			Provider:   "cpu",
		},
		DecodingMethod: "greedy_search",
	}
	return newSherpaEngine(config)
}

func newSherpaEngine(config *sherpa.OfflineRecognizerConfig) (Transcriber, error) {
	recognizer := sherpa.NewOfflineRecognizer(config)
	if recognizer == nil {
		return nil, fmt.Errorf("create sherpa-onnx recognizer: nil result, check model files under %q", config.ModelConfig.Tokens)
	}
	return &sherpaEngine{recognizer: recognizer}, nil
}

func (e *sherpaEngine) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	samples := pcmToFloat32Mono(pcm)

	e.mu.Lock()
	defer e.mu.Unlock()

	stream := sherpa.NewOfflineStream(e.recognizer)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(sampleRate, samples)
	e.recognizer.Decode(stream)

	result := stream.GetResult()
	if result == nil {
		return "", nil
	}
	return strings.TrimSpace(result.Text), nil
}

func (e *sherpaEngine) Close() error {
	if e.recognizer == nil {
		return nil
	}
	sherpa.DeleteOfflineRecognizer(e.recognizer)
	e.recognizer = nil
	return nil
}
