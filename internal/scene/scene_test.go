// SPDX-License-Identifier: MIT
package scene

import (
	"math"
	"testing"
	"time"

	"orbit/internal/fusion"
	"orbit/internal/mir"
	"orbit/internal/palette"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func assertQuat(t *testing.T, want, got quat.Number) {
	t.Helper()
	assert.InDelta(t, want.Real, got.Real, 1e-12, "real")
	assert.InDelta(t, want.Imag, got.Imag, 1e-12, "i")
	assert.InDelta(t, want.Jmag, got.Jmag, 1e-12, "j")
	assert.InDelta(t, want.Kmag, got.Kmag, 1e-12, "k")
}

func TestRotate_AccumulatesAboutSameAxis(t *testing.T) {
	axis := r3.Vec{Y: 1}
	q := quat.Number{Real: 1}
	for range 4 {
		q = Rotate(q, axis, 0.1)
	}
	assertQuat(t, Rotate(quat.Number{Real: 1}, axis, 0.4), q)
	assert.InDelta(t, 1, quat.Abs(q), 1e-12)
}

func TestRotate_ComposesInObjectSpace(t *testing.T) {
	x := r3.Vec{X: 1}
	y := r3.Vec{Y: 1}
	id := quat.Number{Real: 1}

	q := Rotate(Rotate(id, x, math.Pi/2), y, math.Pi/2)

	rx := Rotate(id, x, math.Pi/2)
	ry := Rotate(id, y, math.Pi/2)
	assertQuat(t, quat.Mul(rx, ry), q)

	// Order matters: the opposite order is a different orientation.
	other := Rotate(Rotate(id, y, math.Pi/2), x, math.Pi/2)
	assert.Greater(t, quat.Abs(quat.Sub(q, other)), 0.1)

	// Turning about X and then about the local Y carries local Z onto world +X.
	v := quat.Mul(quat.Mul(q, quat.Number{Kmag: 1}), quat.Conj(q))
	assert.InDelta(t, 1, v.Imag, 1e-12)
	assert.InDelta(t, 0, v.Jmag, 1e-12)
	assert.InDelta(t, 0, v.Kmag, 1e-12)
}

func TestApply_FusedFrameScalesAndTurns(t *testing.T) {
	d := NewDriver()
	e := fusion.New()
	snap := make([]uint8, 128)
	for i := range snap {
		snap[i] = 100
	}
	desc := mir.Descriptors{Tempo: 120, Confidence: 0.8, Danceability: 0.7, Energy: 0.5, DynamicComplexity: 0.3, Loudness: -6}

	p := e.Step(snap, desc, true, fusion.DefaultControls())
	d.Apply(p)

	astronaut, ok := d.Node(AstronautNode)
	require.True(t, ok)
	assert.InDelta(t, 2.66, astronaut.Scale, 1e-12)
	assert.NotEqual(t, quat.Number{Real: 1}, astronaut.Orientation)

	whale, _ := d.Node(WhaleNode)
	assert.InDelta(t, p.Bodies[fusion.Whale].Scale, whale.Scale, 1e-12)

	fin, _ := d.Node(FinLeftNode)
	assert.Equal(t, r3.Vec{X: -0.15, Y: -0.075}, fin.Position)
	assert.Equal(t, 1.0, fin.Scale)
}

func TestApply_ControlsFrameLeavesBodyScales(t *testing.T) {
	d := NewDriver()
	e := fusion.New()
	snap := make([]uint8, 128)
	desc := mir.Descriptors{Tempo: 120, Confidence: 0.8, Danceability: 0.7, Energy: 0.5, DynamicComplexity: 0.3, Loudness: -6}

	d.Apply(e.Step(snap, desc, true, fusion.DefaultControls()))
	before, _ := d.Node(InnerRingNode)

	c := fusion.DefaultControls()
	c.WhaleScale = 2.5
	d.Apply(e.Step(snap, mir.Descriptors{}, false, c))

	after, _ := d.Node(InnerRingNode)
	assert.Equal(t, before.Scale, after.Scale)
	assert.NotEqual(t, before.Orientation, after.Orientation)

	whale, _ := d.Node(WhaleNode)
	assert.Equal(t, 2.5, whale.Scale)
}

func TestFrame(t *testing.T) {
	d := NewDriver()
	d.Apply(fusion.New().Step(nil, mir.Descriptors{}, false, fusion.DefaultControls()))

	f := d.Frame(1500 * time.Millisecond)
	assert.Equal(t, uint64(1), f.Seq)
	assert.Equal(t, int64(1500), f.ElapsedMs)
	assert.Equal(t, "controls", f.Mode)
	assert.Len(t, f.Nodes, numNodes)
	assert.Equal(t, OptionShaded, f.Option)
	assert.InDelta(t, math.Cos(1.5), f.Background[0], 1e-12)
	assert.Equal(t, 0.4, f.Background[1])
	assert.Len(t, f.Palette, 3*palette.Size)

	d.SetDither(true)
	var p palette.Palette
	d.SetPalette(p)
	f = d.Frame(0)
	assert.Equal(t, OptionDither, f.Option)
	assert.Equal(t, 1.0, f.Background[0])
	assert.Equal(t, make([]float64, 3*palette.Size), f.Palette)

	whale, ok := f.Node(WhaleNode)
	require.True(t, ok)
	assert.Equal(t, WhaleNode, whale.Name)
	_, ok = f.Node("camera")
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	d := NewDriver()
	d.SetDither(true)
	d.Apply(fusion.New().Step(nil, mir.Descriptors{}, false, fusion.DefaultControls()))
	d.Reset()

	whale, _ := d.Node(WhaleNode)
	assert.Equal(t, quat.Number{Real: 1}, whale.Orientation)
	assert.True(t, d.dither)
	assert.Zero(t, d.seq)
}
