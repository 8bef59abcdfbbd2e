package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteWAVProducesReadableHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.wav")

	pcm := make([]byte, 320)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	require.NoError(t, WriteWAV(path, pcm, 16000))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 44)
	require.Equal(t, "RIFF", string(data[0:4]))
	require.Equal(t, "WAVE", string(data[8:12]))
}

func TestDebugDumpWAVWritesHeaderAndPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "debug.wav")

	f, err := os.Create(path)
	require.NoError(t, err)

	pcm := []byte{1, 2, 3, 4}
	require.NoError(t, DebugDumpWAV(f, pcm, 16000, 1))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 44+len(pcm), len(data))
	require.Equal(t, "RIFF", string(data[0:4]))
}
