// SPDX-License-Identifier: MIT
package fusion

import (
	"math"

	"orbit/internal/spectrum"

	"gonum.org/v1/gonum/spatial/r3"
)

// Body identifies one of the four driven bodies. The order matches the
// spectrum bands that drive them.
type Body int

const (
	Whale Body = iota
	Astronaut
	InnerRing
	OuterRing
	numBodies
)

var bodyNames = [numBodies]string{"whale", "astronaut", "inner_ring", "outer_ring"}

func (b Body) String() string {
	if b < 0 || b >= numBodies {
		return "unknown"
	}
	return bodyNames[b]
}

// Mode is the mapping used for a frame.
type Mode int

const (
	// ModeControls maps user controls only (no descriptors, or degenerate ones).
	ModeControls Mode = iota
	// ModeFused maps descriptors and band energies onto scale and rotation.
	ModeFused
)

func (m Mode) String() string {
	if m == ModeFused {
		return "fused"
	}
	return "controls"
}

// Fixed rotation axes of the bodies that do not follow the user axis.
var (
	AstronautAxis = r3.Unit(r3.Vec{X: 1, Y: -1, Z: 1})
	InnerRingAxis = r3.Unit(r3.Vec{X: -1, Y: 0, Z: 1})
	OuterRingAxis = r3.Unit(r3.Vec{X: 0, Y: 1, Z: 1})
	FinLeftAxis   = r3.Vec{X: 1, Y: 0, Z: 0}
	FinRightAxis  = r3.Unit(r3.Vec{X: 1, Y: 0.5, Z: 0})

	// DefaultAxis replaces a user axis that cannot be normalised.
	DefaultAxis = r3.Vec{X: 0, Y: 1, Z: 0}
)

var fixedAxes = [numBodies]r3.Vec{Whale: DefaultAxis, Astronaut: AstronautAxis, InnerRing: InnerRingAxis, OuterRing: OuterRingAxis}

// Rotation is an incremental turn about a unit axis.
type Rotation struct {
	Axis  r3.Vec
	Angle float64 // radians
}

// maxRotations bounds the turns per body per frame: the whale takes its
// fused turn plus the constant control turn.
const maxRotations = 2

// BodyParams is what a frame asks of one body.
type BodyParams struct {
	Scale  float64
	Scaled bool // false leaves the body's current scale untouched

	rotations [maxRotations]Rotation
	n         int
}

// Rotations returns the turns to compose, in order.
func (p *BodyParams) Rotations() []Rotation {
	return p.rotations[:p.n]
}

func (p *BodyParams) rotate(axis r3.Vec, angle float64) {
	if p.n < maxRotations {
		p.rotations[p.n] = Rotation{Axis: axis, Angle: angle}
		p.n++
	}
}

func (p *BodyParams) scale(s float64) {
	p.Scale, p.Scaled = s, true
}

// Params is the output of one Step. Every float in it is finite.
type Params struct {
	Mode  Mode
	Bands spectrum.Bands

	Bodies   [numBodies]BodyParams
	FinLeft  BodyParams
	FinRight BodyParams

	// Fused intermediates, zero in ModeControls.
	Divisor  float64            // D
	Factor   float64            // R
	Scales   [numBodies]float64 // s0..s3 before the whale multiplier
	Deltas   [numBodies]float64
	Controls Controls
}

// Controls are the user inputs consumed each frame.
type Controls struct {
	RotationSpeed float64 // radians per frame
	RotationAxis  r3.Vec  // whale axis, normalised before use
	WhaleScale    float64
	FinScale      float64
}

// DefaultControls returns the initial slider values.
func DefaultControls() Controls {
	return Controls{
		RotationSpeed: 0.01,
		RotationAxis:  DefaultAxis,
		WhaleScale:    1,
		FinScale:      1,
	}
}

// sanitize replaces values that would poison the frame with their defaults.
func (c Controls) sanitize() Controls {
	def := DefaultControls()
	if !finite(c.RotationSpeed) {
		c.RotationSpeed = def.RotationSpeed
	}
	if !finite(c.WhaleScale) {
		c.WhaleScale = def.WhaleScale
	}
	if !finite(c.FinScale) {
		c.FinScale = def.FinScale
	}
	c.RotationAxis = NormalizeAxis(c.RotationAxis)
	return c
}

// NormalizeAxis returns the unit vector along v, or DefaultAxis when v is
// zero-length or not finite.
func NormalizeAxis(v r3.Vec) r3.Vec {
	if !finite(v.X) || !finite(v.Y) || !finite(v.Z) {
		return DefaultAxis
	}
	n := r3.Norm(v)
	if n == 0 || !finite(n) {
		return DefaultAxis
	}
	u := r3.Scale(1/n, v)
	if !finite(u.X) || !finite(u.Y) || !finite(u.Z) {
		return DefaultAxis
	}
	return u
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
