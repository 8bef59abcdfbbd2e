package engine

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// decodeWAV reads a mono 16-bit PCM WAV file and returns its samples as raw
// little-endian bytes alongside its sample rate, the shape every Transcriber
// implementation expects.
func decodeWAV(path string) ([]byte, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open wav file %q: %w", path, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode pcm buffer: %w", err)
	}
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file %q", path)
	}

	pcm := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:i*2+2], uint16(int16(sample)))
	}

	return pcm, int(decoder.SampleRate), nil
}
