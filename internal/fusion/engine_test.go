// SPDX-License-Identifier: MIT
package fusion

import (
	"math"
	"testing"

	"orbit/internal/mir"
	"orbit/internal/spectrum"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

var exampleDescriptors = mir.Descriptors{
	Tempo:             120,
	Confidence:        0.8,
	Danceability:      0.7,
	Energy:            0.5,
	DynamicComplexity: 0.3,
	Loudness:          -6,
}

func flat(n int, v uint8) []uint8 {
	s := make([]uint8, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// withBand returns a 128 bin snapshot whose given band sums to total.
func withBand(band int, total int) []uint8 {
	snap := make([]uint8, 128)
	for i := band * 32; i < (band+1)*32 && total > 0; i++ {
		v := min(total, 255)
		snap[i] = uint8(v)
		total -= v
	}
	return snap
}

func requireFinite(t *testing.T, p Params) {
	t.Helper()
	check := func(name string, v float64) {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%s = %v", name, v)
	}
	body := func(name string, b BodyParams) {
		check(name+".scale", b.Scale)
		for _, r := range b.Rotations() {
			check(name+".angle", r.Angle)
			check(name+".axis.x", r.Axis.X)
			check(name+".axis.y", r.Axis.Y)
			check(name+".axis.z", r.Axis.Z)
		}
	}
	for i, b := range p.Bodies {
		body(Body(i).String(), b)
		check("scale", p.Scales[i])
		check("delta", p.Deltas[i])
	}
	body("fin_left", p.FinLeft)
	body("fin_right", p.FinRight)
	check("divisor", p.Divisor)
	check("factor", p.Factor)
}

func TestStep_EndToEndExample(t *testing.T) {
	e := New()
	c := DefaultControls()
	p := e.Step(flat(128, 100), exampleDescriptors, true, c)

	require.Equal(t, ModeFused, p.Mode)
	assert.Equal(t, spectrum.Bands{3200, 3200, 3200, 3200}, p.Bands)

	// 0.5 / (120 * 0.8 * 0.7 * 6) = 0.5 / 403.2
	assert.InDelta(t, 0.5/403.2, p.Divisor, 1e-15)
	assert.InDelta(t, 0.00124008, p.Divisor, 1e-8)
	assert.InDelta(t, 0.9*0.8*3200*0.5/403.2, p.Scales[Whale], 1e-12)
	assert.InDelta(t, 2.857142857, p.Scales[Whale], 1e-6)
	for _, b := range []Body{Astronaut, InnerRing, OuterRing} {
		assert.InDelta(t, 2.66, p.Scales[b], 1e-12, b.String())
		assert.True(t, p.Bodies[b].Scaled)
		assert.InDelta(t, 2.66, p.Bodies[b].Scale, 1e-12)
	}
	assert.InDelta(t, p.Scales[Whale]*c.WhaleScale, p.Bodies[Whale].Scale, 1e-12)

	wantR := c.RotationSpeed * 120 * 0.7 / (0.8 * 0.3 * 6)
	assert.InDelta(t, wantR, p.Factor, 1e-12)

	// From zeroed state every delta is s_i * 100 / 6.
	for i := range p.Deltas {
		assert.InDelta(t, p.Scales[i]*100/6, p.Deltas[i], 1e-9)
	}
	whaleTurns := p.Bodies[Whale].Rotations()
	require.Len(t, whaleTurns, 2)
	assert.InDelta(t, 0.1+wantR*p.Deltas[Whale], whaleTurns[0].Angle, 1e-9)
	assert.InDelta(t, c.RotationSpeed, whaleTurns[1].Angle, 1e-15)
	requireFinite(t, p)

	assert.Equal(t, p.Scales, e.State().Prev)
}

func TestStep_DeltaOrdering(t *testing.T) {
	e := New()
	d := mir.Descriptors{Tempo: 120, Confidence: 1, Danceability: 1, Energy: 1, DynamicComplexity: 1, Loudness: -2}
	c := DefaultControls()

	// s1 = 0.1 + 4900/1000 = 5, then 0.1 + 7900/1000 = 8.
	first := e.Step(withBand(spectrum.MidLow, 4900), d, true, c)
	require.Equal(t, ModeFused, first.Mode)
	require.InDelta(t, 5.0, e.State().Prev[Astronaut], 1e-9)

	second := e.Step(withBand(spectrum.MidLow, 7900), d, true, c)
	require.Equal(t, ModeFused, second.Mode)
	assert.InDelta(t, 150.0, second.Deltas[Astronaut], 1e-9)
	assert.InDelta(t, 8.0, e.State().Prev[Astronaut], 1e-9)

	third := e.Step(withBand(spectrum.MidLow, 7900), d, true, c)
	assert.InDelta(t, 0.0, third.Deltas[Astronaut], 1e-9)
}

func TestStep_ControlsOnlyWhenUnavailable(t *testing.T) {
	e := New()
	c := Controls{RotationSpeed: 0.02, RotationAxis: r3.Vec{Z: 4}, WhaleScale: 1.5, FinScale: 0.5}
	p := e.Step(flat(128, 255), exampleDescriptors, false, c)

	assert.Equal(t, ModeControls, p.Mode)
	assert.Equal(t, State{}, e.State())
	assert.Zero(t, p.Divisor)
	assert.Zero(t, p.Factor)

	assert.True(t, p.Bodies[Whale].Scaled)
	assert.Equal(t, 1.5, p.Bodies[Whale].Scale)
	whale := p.Bodies[Whale].Rotations()
	require.Len(t, whale, 1)
	assert.Equal(t, Rotation{Axis: r3.Vec{Z: 1}, Angle: 0.02}, whale[0])

	for _, b := range []Body{Astronaut, InnerRing, OuterRing} {
		bp := p.Bodies[b]
		assert.False(t, bp.Scaled, "%s scale must be left untouched", b)
		require.Len(t, bp.Rotations(), 1)
		assert.Equal(t, 0.02, bp.Rotations()[0].Angle)
		assert.Equal(t, fixedAxes[b], bp.Rotations()[0].Axis)
	}

	assert.Equal(t, 0.5, p.FinLeft.Scale)
	assert.Equal(t, FinLeftAxis, p.FinLeft.Rotations()[0].Axis)
	assert.Equal(t, FinRightAxis, p.FinRight.Rotations()[0].Axis)
}

func TestStep_DegenerateDescriptorsFallBack(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*mir.Descriptors)
	}{
		{"zero tempo", func(d *mir.Descriptors) { d.Tempo = 0 }},
		{"zero confidence", func(d *mir.Descriptors) { d.Confidence = 0 }},
		{"zero danceability", func(d *mir.Descriptors) { d.Danceability = 0 }},
		{"zero dynamic complexity", func(d *mir.Descriptors) { d.DynamicComplexity = 0 }},
		{"zero loudness", func(d *mir.Descriptors) { d.Loudness = 0 }},
		{"nan loudness", func(d *mir.Descriptors) { d.Loudness = math.NaN() }},
		{"inf tempo", func(d *mir.Descriptors) { d.Tempo = math.Inf(1) }},
		{"inf energy", func(d *mir.Descriptors) { d.Energy = math.Inf(1) }},
		{"overflowing divisor", func(d *mir.Descriptors) {
			d.Energy = 1e308
			d.Tempo = 1e-10
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New()
			d := exampleDescriptors
			tt.mutate(&d)

			p := e.Step(flat(128, 100), d, true, DefaultControls())
			assert.Equal(t, ModeControls, p.Mode)
			assert.Equal(t, State{}, e.State(), "state must not change on a fallback frame")
			requireFinite(t, p)
		})
	}
}

func TestStep_FallbackKeepsPreviousState(t *testing.T) {
	e := New()
	e.Step(flat(128, 100), exampleDescriptors, true, DefaultControls())
	before := e.State()

	bad := exampleDescriptors
	bad.Confidence = 0
	e.Step(flat(128, 10), bad, true, DefaultControls())
	e.Step(flat(128, 10), exampleDescriptors, false, DefaultControls())
	assert.Equal(t, before, e.State())
}

func TestStep_ControlsNeverProduceNonFinite(t *testing.T) {
	garbage := []float64{0, -1, 1e308, -1e308, math.NaN(), math.Inf(1), math.Inf(-1), 5e-324}
	e := New()
	for _, v := range garbage {
		d := mir.Descriptors{Tempo: v, Confidence: v, Danceability: v, Energy: v, DynamicComplexity: v, Loudness: v}
		c := Controls{RotationSpeed: v, RotationAxis: r3.Vec{X: v, Y: v, Z: v}, WhaleScale: v, FinScale: v}
		for _, ok := range []bool{false, true} {
			requireFinite(t, e.Step(flat(128, 255), d, ok, c))
		}
	}
}

func TestStep_FusedOutputsFinite(t *testing.T) {
	e := New()
	for _, loud := range []float64{-60, -12, -0.5, 3} {
		for _, conf := range []float64{0.01, 0.5, 1} {
			d := mir.Descriptors{Tempo: 95, Confidence: conf, Danceability: 1.2, Energy: 2.5e4, DynamicComplexity: 4, Loudness: loud}
			for _, v := range []uint8{0, 17, 255} {
				p := e.Step(flat(128, v), d, true, DefaultControls())
				assert.Equal(t, ModeFused, p.Mode)
				requireFinite(t, p)
			}
		}
	}
}

func TestStep_ScaleMultipliers(t *testing.T) {
	e := New()
	c := DefaultControls()
	c.WhaleScale = 2
	c.FinScale = 3
	p := e.Step(flat(128, 100), exampleDescriptors, true, c)

	assert.InDelta(t, 2*p.Scales[Whale], p.Bodies[Whale].Scale, 1e-12)
	assert.Equal(t, 3.0, p.FinLeft.Scale)
	assert.Equal(t, 3.0, p.FinRight.Scale)
}

func TestReset(t *testing.T) {
	e := New()
	e.Step(flat(128, 100), exampleDescriptors, true, DefaultControls())
	require.NotEqual(t, State{}, e.State())
	e.Reset()
	assert.Equal(t, State{}, e.State())
}

func TestNormalizeAxis(t *testing.T) {
	tests := []struct {
		in   r3.Vec
		want r3.Vec
	}{
		{r3.Vec{X: 3}, r3.Vec{X: 1}},
		{r3.Vec{}, DefaultAxis},
		{r3.Vec{X: math.NaN(), Y: 1}, DefaultAxis},
		{r3.Vec{Y: math.Inf(1)}, DefaultAxis},
		{r3.Vec{X: 5e-324}, DefaultAxis},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAxis(tt.in), "%v", tt.in)
	}
	u := NormalizeAxis(r3.Vec{X: 1, Y: 2, Z: 2})
	assert.InDelta(t, 1.0, r3.Norm(u), 1e-12)
}

func TestStep_NoAllocations(t *testing.T) {
	e := New()
	snap := flat(128, 100)
	c := DefaultControls()
	allocs := testing.AllocsPerRun(100, func() {
		_ = e.Step(snap, exampleDescriptors, true, c)
	})
	assert.Zero(t, allocs)
}
