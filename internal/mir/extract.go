// SPDX-License-Identifier: MIT
package mir

import (
	"fmt"
	"math"
)

const (
	// silenceFloor is the peak amplitude below which a track counts as silent.
	silenceFloor = 1e-6

	// minDuration is the shortest signal, in seconds, that yields a usable tempo.
	minDuration = 3.0
)

// Extract computes Descriptors for a mono signal in [-1, 1] sampled at
// sampleRate. It fails as a whole rather than returning partial results,
// and a track whose tempo, confidence, danceability, dynamic complexity or
// loudness comes out as zero is rejected with ErrDegenerateSignal.
func Extract(samples []float32, sampleRate int) (Descriptors, error) {
	if sampleRate <= 0 {
		return Descriptors{}, fmt.Errorf("%w, got %d", ErrInvalidSampleRate, sampleRate)
	}
	if len(samples) == 0 {
		return Descriptors{}, ErrEmptySignal
	}
	if float64(len(samples)) < minDuration*float64(sampleRate) {
		return Descriptors{}, fmt.Errorf("%w: %d samples at %d Hz, need %.0fs",
			ErrTooShort, len(samples), sampleRate, minDuration)
	}

	var energy, peak float64
	for _, s := range samples {
		v := float64(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Descriptors{}, ErrInvalidSample
		}
		energy += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak < silenceFloor {
		return Descriptors{}, fmt.Errorf("%w: silent track", ErrDegenerateSignal)
	}

	tempo, confidence, err := estimateTempo(samples, sampleRate)
	if err != nil {
		return Descriptors{}, err
	}

	danceability, err := estimateDanceability(samples, sampleRate)
	if err != nil {
		return Descriptors{}, err
	}

	loudness, complexity, err := dynamicComplexity(samples, sampleRate)
	if err != nil {
		return Descriptors{}, err
	}

	d := Descriptors{
		Tempo:             tempo,
		Confidence:        confidence,
		Danceability:      danceability,
		Energy:            energy,
		DynamicComplexity: complexity,
		Loudness:          loudness,
	}
	if !d.finite() {
		return Descriptors{}, fmt.Errorf("%w: non-finite descriptor (%s)", ErrDegenerateSignal, d)
	}
	if name := d.zeroField(); name != "" {
		return Descriptors{}, fmt.Errorf("%w: %s is zero (%s)", ErrDegenerateSignal, name, d)
	}
	return d, nil
}
