package audio

import (
	"math"
	"sync"

	"github.com/mjibson/go-dsp/fft"
)

const spectrumBars = 8

// SpectrumAnalyzer folds a rolling PCM window into a small set of log-spaced
// level bars with slow-decay peak references, for a live level meter.
type SpectrumAnalyzer struct {
	sampleRate int
	windowSize int

	mu     sync.Mutex
	window []float64
	peaks  [spectrumBars]float64

	out chan [spectrumBars]float64
}

// NewSpectrumAnalyzer builds an analyzer whose FFT window holds at least 40ms
// of audio at sampleRate, rounded up to a power of two (1024 samples, 64ms, at 16kHz).
func NewSpectrumAnalyzer(sampleRate int) *SpectrumAnalyzer {
	windowSize := nextPowerOfTwo(sampleRate * 4 / 100)
	return &SpectrumAnalyzer{
		sampleRate: sampleRate,
		windowSize: windowSize,
		window:     make([]float64, 0, windowSize),
		out:        make(chan [spectrumBars]float64, 4),
	}
}

// Bars delivers newest-wins bar snapshots; a full channel drops the oldest pending update.
func (s *SpectrumAnalyzer) Bars() <-chan [spectrumBars]float64 {
	return s.out
}

// Feed appends little-endian s16 PCM bytes and emits a bar snapshot once a full window accrues.
func (s *SpectrumAnalyzer) Feed(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		s.window = append(s.window, float64(sample)/32768.0)
	}

	for len(s.window) >= s.windowSize {
		frame := s.window[:s.windowSize]
		s.window = append([]float64(nil), s.window[s.windowSize:]...)
		bars := s.analyze(frame)
		select {
		case s.out <- bars:
		default:
			select {
			case <-s.out:
			default:
			}
			select {
			case s.out <- bars:
			default:
			}
		}
	}
}

// analyze computes a log-spaced bar envelope from one FFT window.
func (s *SpectrumAnalyzer) analyze(frame []float64) [spectrumBars]float64 {
	windowed := make([]float64, len(frame))
	for i, v := range frame {
		// Hann window.
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(len(frame)-1))
		windowed[i] = v * w
	}

	spectrum := fft.FFTReal(windowed)
	magnitudes := make([]float64, len(spectrum)/2)
	for i := range magnitudes {
		magnitudes[i] = math.Hypot(real(spectrum[i]), imag(spectrum[i]))
	}

	var bars [spectrumBars]float64
	minHz := 80.0
	maxHz := float64(s.sampleRate) / 2
	for bar := 0; bar < spectrumBars; bar++ {
		loHz := minHz * math.Pow(maxHz/minHz, float64(bar)/spectrumBars)
		hiHz := minHz * math.Pow(maxHz/minHz, float64(bar+1)/spectrumBars)
		loBin := int(loHz * float64(len(frame)) / float64(s.sampleRate))
		hiBin := int(hiHz * float64(len(frame)) / float64(s.sampleRate))
		if hiBin <= loBin {
			hiBin = loBin + 1
		}
		if hiBin > len(magnitudes) {
			hiBin = len(magnitudes)
		}

		var sum float64
		count := 0
		for bin := loBin; bin < hiBin; bin++ {
			sum += magnitudes[bin]
			count++
		}
		level := 0.0
		if count > 0 {
			level = sum / float64(count) / float64(len(frame))
		}

		if level > s.peaks[bar] {
			s.peaks[bar] = level
		} else {
			s.peaks[bar] *= 0.92
		}
		if s.peaks[bar] > 0 {
			bars[bar] = math.Min(1.0, level/s.peaks[bar])
		}
	}

	return bars
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
