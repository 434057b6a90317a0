// SPDX-License-Identifier: MIT
package mir

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

const (
	onsetFrameSize = 1024
	onsetHopSize   = 512

	minBPM = 60.0
	maxBPM = 200.0

	// priorBPM centres the log-Gaussian tempo prior that breaks ties
	// between a tempo and its octave multiples.
	priorBPM = 120.0
)

// onsetEnvelope returns the positive spectral flux of each hop-spaced frame.
func onsetEnvelope(samples []float32) []float64 {
	frames := (len(samples)-onsetFrameSize)/onsetHopSize + 1
	if frames < 1 {
		return nil
	}

	fft := fourier.NewFFT(onsetFrameSize)
	coeffs := window.Hann(ones(onsetFrameSize))
	input := make([]float64, onsetFrameSize)
	spectrum := make([]complex128, onsetFrameSize/2+1)
	prev := make([]float64, len(spectrum))
	env := make([]float64, frames)

	for f := range frames {
		off := f * onsetHopSize
		for i := range input {
			input[i] = float64(samples[off+i]) * coeffs[i]
		}
		fft.Coefficients(spectrum, input)

		var flux float64
		for i, c := range spectrum {
			mag := cmplx.Abs(c)
			if d := mag - prev[i]; d > 0 {
				flux += d
			}
			prev[i] = mag
		}
		env[f] = flux
	}
	return env
}

// estimateTempo picks the autocorrelation lag of the onset envelope that
// best explains a beat between minBPM and maxBPM. Confidence is the peak
// autocorrelation normalised by the zero-lag energy.
func estimateTempo(samples []float32, sampleRate int) (bpm, confidence float64, err error) {
	env := onsetEnvelope(samples)
	n := len(env)

	framesPerSecond := float64(sampleRate) / onsetHopSize
	minLag, maxLag := lagRange(framesPerSecond, n)
	if minLag >= maxLag {
		return 0, 0, fmt.Errorf("%w: %d onset frames", ErrTooShort, n)
	}

	var mean float64
	for _, v := range env {
		mean += v
	}
	mean /= float64(n)
	for i := range env {
		env[i] -= mean
	}

	ac0 := autocorrelation(env, 0)
	if ac0 <= 0 {
		return 0, 0, fmt.Errorf("%w: flat onset envelope", ErrDegenerateSignal)
	}

	bestLag, bestScore, bestAC := 0, math.Inf(-1), 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		ac := autocorrelation(env, lag)
		lagBPM := 60 * framesPerSecond / float64(lag)
		octaves := math.Log2(lagBPM / priorBPM)
		score := ac * math.Exp(-0.5*octaves*octaves)
		if score > bestScore {
			bestLag, bestScore, bestAC = lag, score, ac
		}
	}

	bpm = 60 * framesPerSecond / float64(bestLag)
	bpm = math.Round(bpm*10) / 10
	confidence = math.Max(0, math.Min(1, bestAC/ac0))
	return bpm, confidence, nil
}

// lagRange returns the inclusive onset-frame lags whose tempo lies within
// [minBPM, maxBPM], capped at half the envelope length.
func lagRange(framesPerSecond float64, frames int) (minLag, maxLag int) {
	minLag = max(1, int(math.Ceil(60*framesPerSecond/maxBPM)))
	maxLag = min(frames/2, int(math.Floor(60*framesPerSecond/minBPM)))
	return minLag, maxLag
}

// autocorrelation is the mean lagged product of x with itself.
func autocorrelation(x []float64, lag int) float64 {
	n := len(x) - lag
	if n <= 0 {
		return 0
	}
	var sum float64
	for i := range n {
		sum += x[i] * x[i+lag]
	}
	return sum / float64(n)
}

func ones(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = 1
	}
	return s
}
