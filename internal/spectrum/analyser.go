// SPDX-License-Identifier: MIT
package spectrum

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"orbit/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Source is anything that can fill a byte frequency snapshot.
type Source interface {
	BinCount() int
	ByteFrequencyData(dst []uint8)
}

// analyserWorkspace holds pre-allocated buffers so that reading a snapshot
// does not allocate.
type analyserWorkspace struct {
	input    []float64    // ...windowed time-domain frame
	spectrum []complex128 // ...FFT output
	smoothed []float64    // ...smoothed magnitudes carried between reads
	window   []float64    // ...Blackman coefficients
}

// Analyser is the live analysis node. The playback side writes the samples
// it outputs; the render loop reads byte-scaled magnitudes. It is the only
// structure shared between the audio callback and the render goroutine.
type Analyser struct {
	mu sync.Mutex

	fftSize   int
	smoothing float64
	minDb     float64
	maxDb     float64

	ring []float32 // last fftSize samples
	head int       // next write position in ring

	fftObj    *fourier.FFT
	workspace analyserWorkspace
}

// NewAnalyser creates an analyser with the given FFT window, smoothing time
// constant in [0,1) and decibel range mapped onto bytes 0..255.
func NewAnalyser(fftSize int, smoothing, minDb, maxDb float64) (*Analyser, error) {
	if !bitint.IsPowerOfTwo(fftSize) || fftSize < 2 {
		return nil, fmt.Errorf("spectrum: fft size must be a power of 2, got %d", fftSize)
	}
	if smoothing < 0 || smoothing >= 1 || math.IsNaN(smoothing) {
		return nil, fmt.Errorf("spectrum: smoothing must be in [0, 1), got %g", smoothing)
	}
	if !(minDb < maxDb) {
		return nil, fmt.Errorf("spectrum: min decibels %g must be below max decibels %g", minDb, maxDb)
	}

	coeffs := make([]float64, fftSize)
	for i := range coeffs {
		coeffs[i] = 1
	}

	return &Analyser{
		fftSize:   fftSize,
		smoothing: smoothing,
		minDb:     minDb,
		maxDb:     maxDb,
		ring:      make([]float32, fftSize),
		fftObj:    fourier.NewFFT(fftSize),
		workspace: analyserWorkspace{
			input:    make([]float64, fftSize),
			spectrum: make([]complex128, fftSize/2+1),
			smoothed: make([]float64, fftSize/2),
			window:   window.Blackman(coeffs),
		},
	}, nil
}

// BinCount is half the FFT size.
func (a *Analyser) BinCount() int {
	return a.fftSize / 2
}

// Write appends played samples to the analysis window.
func (a *Analyser) Write(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(samples) >= a.fftSize {
		copy(a.ring, samples[len(samples)-a.fftSize:])
		a.head = 0
		return
	}
	for _, s := range samples {
		a.ring[a.head] = s
		a.head = (a.head + 1) % a.fftSize
	}
}

// Reset clears the window and the smoothing history.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	clear(a.workspace.smoothed)
	a.head = 0
}

// ByteFrequencyData fills dst with the current magnitudes: Blackman window,
// FFT, magnitude over fftSize, exponential smoothing, conversion to dB and
// linear mapping of [minDb, maxDb] onto [0, 255]. At most BinCount values
// are written.
func (a *Analyser) ByteFrequencyData(dst []uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ws := &a.workspace
	for i := range a.fftSize {
		ws.input[i] = float64(a.ring[(a.head+i)%a.fftSize]) * ws.window[i]
	}
	a.fftObj.Coefficients(ws.spectrum, ws.input)

	scale := 255 / (a.maxDb - a.minDb)
	n := min(len(dst), len(ws.smoothed))
	for k := range ws.smoothed {
		mag := cmplx.Abs(ws.spectrum[k]) / float64(a.fftSize)
		ws.smoothed[k] = a.smoothing*ws.smoothed[k] + (1-a.smoothing)*mag
		if k >= n {
			continue
		}
		dst[k] = toByte(scale * (20*math.Log10(ws.smoothed[k]) - a.minDb))
	}
}

func toByte(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(math.Floor(v))
	}
}
