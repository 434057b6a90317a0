// SPDX-License-Identifier: MIT
package mir

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	loudnessFrameSeconds = 0.2

	// loudnessFloor clamps silent frames so they do not drive the mean to -Inf.
	loudnessFloor = -90.0
)

// dynamicComplexity splits the signal into 200ms frames, measures each frame
// in dB and returns the power-weighted mean level (loudness) and the
// power-weighted mean absolute deviation from it (dynamic complexity).
func dynamicComplexity(samples []float32, sampleRate int) (loudness, complexity float64, err error) {
	frameLen := int(float64(sampleRate) * loudnessFrameSeconds)
	if frameLen < 1 || len(samples) < frameLen {
		return 0, 0, fmt.Errorf("%w: no complete loudness frame", ErrTooShort)
	}
	frames := len(samples) / frameLen

	levels := make([]float64, frames)
	weights := make([]float64, frames)
	for f := range frames {
		var ms float64
		for _, s := range samples[f*frameLen : (f+1)*frameLen] {
			ms += float64(s) * float64(s)
		}
		ms /= float64(frameLen)
		weights[f] = ms
		levels[f] = math.Max(loudnessFloor, 10*math.Log10(ms))
	}

	var total float64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return 0, 0, fmt.Errorf("%w: no frame carries energy", ErrDegenerateSignal)
	}

	loudness = stat.Mean(levels, weights)
	for i, l := range levels {
		levels[i] = math.Abs(l - loudness)
	}
	complexity = stat.Mean(levels, weights)
	return loudness, complexity, nil
}
