// SPDX-License-Identifier: MIT
package mir

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// dfaFrameSeconds is the RMS frame length the fluctuation series is built from.
	dfaFrameSeconds = 0.01

	// DFA window sizes in frames run from 310ms to 8s.
	dfaMinScale  = 31
	dfaMaxScale  = 800
	dfaScaleStep = 1.5

	maxDanceability = 3.0
)

// estimateDanceability runs detrended fluctuation analysis over the frame
// RMS series. Each pair of neighbouring scales gives a local scaling
// exponent alpha; danceability is the mean of 1/alpha, so rhythmically
// self-similar material (alpha near 0.5) scores high and drifting material
// scores low.
func estimateDanceability(samples []float32, sampleRate int) (float64, error) {
	frameLen := int(float64(sampleRate) * dfaFrameSeconds)
	if frameLen < 1 {
		frameLen = 1
	}
	m := len(samples) / frameLen

	profile := make([]float64, m)
	for f := range m {
		var ms float64
		for _, s := range samples[f*frameLen : (f+1)*frameLen] {
			ms += float64(s) * float64(s)
		}
		profile[f] = math.Sqrt(ms / float64(frameLen))
	}
	mean := stat.Mean(profile, nil)
	var acc float64
	for i, v := range profile {
		acc += v - mean
		profile[i] = acc
	}

	var scales []int
	for tau := float64(dfaMinScale); int(tau) <= dfaMaxScale && int(tau) <= m/4; tau *= dfaScaleStep {
		scales = append(scales, int(tau))
	}
	if len(scales) < 2 {
		return 0, fmt.Errorf("%w: %d RMS frames for fluctuation analysis", ErrTooShort, m)
	}

	fluct := make([]float64, len(scales))
	for i, tau := range scales {
		fluct[i] = fluctuation(profile, tau)
	}

	var sum float64
	var count int
	for i := 0; i+1 < len(scales); i++ {
		if fluct[i] <= 0 || fluct[i+1] <= 0 {
			continue
		}
		alpha := (math.Log(fluct[i+1]) - math.Log(fluct[i])) /
			(math.Log(float64(scales[i+1])) - math.Log(float64(scales[i])))
		if alpha > 0 {
			sum += 1 / alpha
			count++
		}
	}
	if count == 0 {
		return 0, fmt.Errorf("%w: no positive fluctuation exponent", ErrDegenerateSignal)
	}
	return math.Min(maxDanceability, sum/float64(count)), nil
}

// fluctuation is the root mean square residual of y around a least squares
// line fitted to each non-overlapping window of length tau.
func fluctuation(y []float64, tau int) float64 {
	t := make([]float64, tau)
	floats.Span(t, 0, float64(tau-1))

	windows := len(y) / tau
	var residual float64
	for w := range windows {
		seg := y[w*tau : (w+1)*tau]
		alpha, beta := stat.LinearRegression(t, seg, nil, false)
		for i, v := range seg {
			r := v - (alpha + beta*t[i])
			residual += r * r
		}
	}
	return math.Sqrt(residual / float64(windows*tau))
}
