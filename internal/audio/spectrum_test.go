package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpectrumAnalyzerEmitsBarsForToneWindow(t *testing.T) {
	analyzer := NewSpectrumAnalyzer(16000)

	pcm := make([]byte, analyzer.windowSize*2)
	for i := 0; i < analyzer.windowSize; i++ {
		sample := int16(math.Sin(2*math.Pi*440*float64(i)/16000) * 20000)
		pcm[i*2] = byte(uint16(sample))
		pcm[i*2+1] = byte(uint16(sample) >> 8)
	}

	analyzer.Feed(pcm)

	select {
	case bars := <-analyzer.Bars():
		total := 0.0
		for _, b := range bars {
			require.GreaterOrEqual(t, b, 0.0)
			require.LessOrEqual(t, b, 1.0)
			total += b
		}
		require.Greater(t, total, 0.0)
	default:
		t.Fatal("expected a bar snapshot after feeding one full window")
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	require.Equal(t, 1, nextPowerOfTwo(0))
	require.Equal(t, 1, nextPowerOfTwo(1))
	require.Equal(t, 2, nextPowerOfTwo(2))
	require.Equal(t, 8, nextPowerOfTwo(5))
	require.Equal(t, 1024, nextPowerOfTwo(1000))
}

func TestFrameBytesFor(t *testing.T) {
	require.Equal(t, 640, frameBytesFor(16000))
	require.Equal(t, 1920, frameBytesFor(48000))
}
