// SPDX-License-Identifier: MIT
package mir

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbit/pkg/utils"
)

func sine(sampleRate int, freq, amp float64, seconds float64) []float32 {
	return utils.GenerateSineWave(int(seconds*float64(sampleRate)), float64(sampleRate), freq, amp)
}

// crescendoClicks returns a click track whose clicks grow from 40% to full
// level, so the loudness frames differ and dynamic complexity is non-zero.
func crescendoClicks(sampleRate, period, total int) []float32 {
	samples := utils.GenerateClickTrack(sampleRate, period, total)
	clicks := (total + period - 1) / period
	for k := range clicks {
		gain := float32(0.4 + 0.6*float64(k)/float64(max(1, clicks-1)))
		for i := k * period; i < min(total, k*period+256); i++ {
			samples[i] *= gain
		}
	}
	return samples
}

// squareWave returns a full-scale square wave with the given period in samples.
func squareWave(period, total int) []float32 {
	samples := make([]float32, total)
	for i := range samples {
		samples[i] = 1
		if (i/(period/2))%2 == 1 {
			samples[i] = -1
		}
	}
	return samples
}

func TestExtract_ClickTrackTempo(t *testing.T) {
	// 25600 Hz with a 512 hop gives 50 onset frames per second, so a click
	// every half second lands on an exact 25 frame lag.
	const sr = 25600
	samples := crescendoClicks(sr, sr/2, 8*sr)
	d, err := Extract(samples, sr)
	require.NoError(t, err)

	assert.InDelta(t, 120, d.Tempo, 2)
	assert.Greater(t, d.Confidence, 0.3)
	assert.LessOrEqual(t, d.Confidence, 1.0)
	assert.Greater(t, d.Danceability, 0.0)
	assert.LessOrEqual(t, d.Danceability, maxDanceability)
	assert.Less(t, d.Loudness, 0.0)
	assert.Greater(t, d.DynamicComplexity, 0.0)

	var energy float64
	for _, s := range samples {
		energy += float64(s) * float64(s)
	}
	assert.InDelta(t, energy, d.Energy, 1e-6*energy)
}

func TestDynamicComplexity_SteadySine(t *testing.T) {
	const sr = 22050
	loudness, complexity, err := dynamicComplexity(sine(sr, 440, 0.5, 4), sr)
	require.NoError(t, err)

	assert.InDelta(t, 10*math.Log10(0.125), loudness, 0.1)
	assert.InDelta(t, 0, complexity, 1e-9)
}

func TestEstimateTempo_StaysInRange(t *testing.T) {
	const sr = 22050
	rng := rand.New(rand.NewPCG(1, 2))
	noise := make([]float32, 6*sr)
	for i := range noise {
		noise[i] = float32(rng.Float64()*2 - 1)
	}

	bpm, confidence, err := estimateTempo(noise, sr)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, bpm, minBPM)
	assert.LessOrEqual(t, bpm, maxBPM)
	assert.GreaterOrEqual(t, confidence, 0.0)
	assert.LessOrEqual(t, confidence, 1.0)
}

func TestLagRange(t *testing.T) {
	for _, sr := range []int{8000, 11025, 22050, 25600, 44100, 48000} {
		fps := float64(sr) / onsetHopSize
		minLag, maxLag := lagRange(fps, 1<<20)
		require.Less(t, minLag, maxLag, "rate %d", sr)
		assert.LessOrEqual(t, 60*fps/float64(minLag), maxBPM, "rate %d", sr)
		assert.GreaterOrEqual(t, 60*fps/float64(maxLag), minBPM, "rate %d", sr)
	}

	_, maxLag := lagRange(50, 40)
	assert.Equal(t, 20, maxLag, "capped at half the envelope")
}

func TestExtract_Deterministic(t *testing.T) {
	const sr = 25600
	samples := crescendoClicks(sr, sr/3, 5*sr)

	a, err := Extract(samples, sr)
	require.NoError(t, err)
	b, err := Extract(samples, sr)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExtract_Errors(t *testing.T) {
	const sr = 22050

	tests := []struct {
		name    string
		samples []float32
		rate    int
		wantErr error
	}{
		{"empty", nil, sr, ErrEmptySignal},
		{"bad rate", sine(sr, 440, 0.5, 4), 0, ErrInvalidSampleRate},
		{"too short", sine(sr, 440, 0.5, 1), sr, ErrTooShort},
		{"silence", make([]float32, 4*sr), sr, ErrDegenerateSignal},
		{"constant level tone", sine(sr, 440, 0.5, 4), sr, ErrDegenerateSignal},
		{"full scale square", squareWave(50, 4*sr), sr, ErrDegenerateSignal},
		{"nan sample", func() []float32 {
			s := sine(sr, 440, 0.5, 4)
			s[100] = float32(math.NaN())
			return s
		}(), sr, ErrInvalidSample},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Extract(tt.samples, tt.rate)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, Descriptors{}, d)
		})
	}
}

func TestFluctuation_LinearProfileHasNoResidual(t *testing.T) {
	y := make([]float64, 200)
	for i := range y {
		y[i] = 3 + 0.5*float64(i)
	}
	assert.InDelta(t, 0, fluctuation(y, 40), 1e-9)
}

func TestAutocorrelation(t *testing.T) {
	x := []float64{1, -1, 1, -1}
	assert.InDelta(t, 1, autocorrelation(x, 0), 1e-12)
	assert.InDelta(t, -1, autocorrelation(x, 1), 1e-12)
	assert.InDelta(t, 1, autocorrelation(x, 2), 1e-12)
	assert.Zero(t, autocorrelation(x, 4))
}
