// SPDX-License-Identifier: MIT
/*
Package mir extracts whole-track music descriptors from a decoded mono
signal. Extraction is a pure function of its input: it touches no session,
scene or playback state, which is what lets the worker run it on its own
goroutine and hand the result over by value.

Descriptors produced:
  - Tempo and beat Confidence from an onset-envelope autocorrelation
  - Danceability from detrended fluctuation analysis of the frame RMS
  - Energy as the sum of squared samples
  - Loudness and DynamicComplexity from 200ms frame levels in dB
*/
package mir

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptySignal is returned for a zero-length sample slice.
	ErrEmptySignal = errors.New("mir: empty signal")

	// ErrTooShort is returned when the signal cannot hold enough analysis frames.
	ErrTooShort = errors.New("mir: signal too short for analysis")

	// ErrInvalidSample is returned when the signal contains NaN or infinite samples.
	ErrInvalidSample = errors.New("mir: signal contains non-finite samples")

	// ErrDegenerateSignal is returned for silence, when any descriptor
	// cannot be computed as a finite value, or when a descriptor the scene
	// divides by comes out as zero.
	ErrDegenerateSignal = errors.New("mir: degenerate signal")

	// ErrInvalidSampleRate is returned for a non-positive sample rate.
	ErrInvalidSampleRate = errors.New("mir: sample rate must be positive")
)

// Descriptors summarises a whole track. The zero value is never returned by
// Extract; a Descriptors is either complete or absent.
type Descriptors struct {
	Tempo             float64 `json:"tempo"`              // Beats per minute.
	Confidence        float64 `json:"confidence"`         // Beat confidence in [0,1].
	Danceability      float64 `json:"danceability"`       // 0..3, higher is more regular.
	Energy            float64 `json:"energy"`             // Sum of squared samples.
	DynamicComplexity float64 `json:"dynamic_complexity"` // Mean abs deviation of frame loudness, dB.
	Loudness          float64 `json:"loudness"`           // Weighted mean frame loudness, dB.
}

// String renders the descriptors in the worker response order.
func (d Descriptors) String() string {
	return fmt.Sprintf("tempo=%.1f confidence=%.3f danceability=%.3f energy=%.3f dynamicComplexity=%.3f loudness=%.2f",
		d.Tempo, d.Confidence, d.Danceability, d.Energy, d.DynamicComplexity, d.Loudness)
}

// descriptorFloor is the magnitude below which a descriptor counts as zero.
const descriptorFloor = 1e-9

// zeroField names the first descriptor the scene divides by that is
// effectively zero, or returns "" when all of them are usable.
func (d Descriptors) zeroField() string {
	for _, f := range [...]struct {
		name  string
		value float64
	}{
		{"tempo", d.Tempo},
		{"confidence", d.Confidence},
		{"danceability", d.Danceability},
		{"dynamicComplexity", d.DynamicComplexity},
		{"loudness", d.Loudness},
	} {
		if math.Abs(f.value) < descriptorFloor {
			return f.name
		}
	}
	return ""
}

// finite reports whether every field is a finite number.
func (d Descriptors) finite() bool {
	for _, v := range [...]float64{d.Tempo, d.Confidence, d.Danceability, d.Energy, d.DynamicComplexity, d.Loudness} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
