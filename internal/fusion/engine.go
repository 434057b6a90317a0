// SPDX-License-Identifier: MIT
package fusion

import (
	"math"

	"orbit/internal/mir"
	"orbit/internal/spectrum"
)

const (
	whaleWeight = 0.9    // share of B0·D in the whale scale
	baseScale   = 0.1    // resting scale of the bands 1..3 bodies
	bandDivisor = 1000.0 // brings a summed band (up to 32·255) near unit scale
	deltaGain   = 100.0
	baseTurn    = 0.1 // radians added to every fused rotation
)

// State is the memory the engine carries between frames.
type State struct {
	Prev [numBodies]float64 // previous-frame s_i, all zero initially
}

// Engine turns a spectrum snapshot, track descriptors and user controls into
// per-body scale and rotation. It is owned by the render goroutine and is
// not safe for concurrent use.
type Engine struct {
	state State
}

// New returns an engine with zeroed state.
func New() *Engine {
	return &Engine{}
}

// State returns a copy of the inter-frame state.
func (e *Engine) State() State {
	return e.state
}

// Reset zeroes the inter-frame state, as on a session restart.
func (e *Engine) Reset() {
	e.state = State{}
}

// Step computes one frame. When ok is false, or the descriptors cannot be
// divided by safely, the frame is driven by the controls alone and the
// state is left as it was. Step never panics and never returns a
// non-finite value.
func (e *Engine) Step(snapshot []uint8, d mir.Descriptors, ok bool, c Controls) Params {
	c = c.sanitize()
	p := Params{
		Bands:    spectrum.Partition(snapshot),
		Controls: c,
	}

	if !ok || !e.fuse(&p, d, c) {
		controlsOnly(&p, c)
	}
	constantMotion(&p, c)
	return p
}

// usable reports whether every descriptor used as a divisor is non-zero and
// finite.
func usable(d mir.Descriptors) bool {
	for _, v := range [...]float64{d.Tempo, d.Confidence, d.Danceability, d.DynamicComplexity, d.Loudness} {
		if v == 0 || !finite(v) {
			return false
		}
	}
	return finite(d.Energy)
}

// fuse fills p for a fused frame and commits the new state. It returns
// false, leaving state untouched, if any intermediate is not finite.
func (e *Engine) fuse(p *Params, d mir.Descriptors, c Controls) bool {
	if !usable(d) {
		return false
	}

	loud := math.Abs(d.Loudness)
	b := p.Bands

	divisor := d.Energy / (d.Tempo * d.Confidence * d.Danceability * loud)

	var s [numBodies]float64
	s[Whale] = whaleWeight * d.Confidence * b[spectrum.Low] * divisor
	s[Astronaut] = baseScale + d.Confidence*b[spectrum.MidLow]/bandDivisor
	s[InnerRing] = baseScale + d.Confidence*b[spectrum.MidHigh]/bandDivisor
	s[OuterRing] = baseScale + d.Confidence*b[spectrum.High]/bandDivisor

	// Each delta is taken against the previous frame's value for the
	// same band before that value is replaced.
	next := e.state
	var delta [numBodies]float64
	for i := range s {
		delta[i] = math.Abs(next.Prev[i]-s[i]) * deltaGain / loud
		next.Prev[i] = s[i]
	}

	factor := c.RotationSpeed * d.Tempo * d.Danceability / (d.Confidence * d.DynamicComplexity * loud)

	var turn [numBodies]float64
	for i := range turn {
		turn[i] = baseTurn + factor*delta[i]
	}

	whaleScale := s[Whale] * c.WhaleScale
	for _, v := range [...]float64{divisor, factor, whaleScale} {
		if !finite(v) {
			return false
		}
	}
	for i := range s {
		if !finite(s[i]) || !finite(delta[i]) || !finite(turn[i]) {
			return false
		}
	}

	e.state = next
	p.Mode = ModeFused
	p.Divisor, p.Factor = divisor, factor
	p.Scales, p.Deltas = s, delta

	p.Bodies[Whale].rotate(c.RotationAxis, turn[Whale])
	p.Bodies[Whale].scale(whaleScale)
	for _, body := range [...]Body{Astronaut, InnerRing, OuterRing} {
		p.Bodies[body].rotate(fixedAxes[body], turn[body])
		p.Bodies[body].scale(s[body])
	}
	return true
}

// controlsOnly is the mapping used before descriptors arrive.
func controlsOnly(p *Params, c Controls) {
	p.Mode = ModeControls
	p.Bodies[Whale].scale(c.WhaleScale)
	for _, body := range [...]Body{Astronaut, InnerRing, OuterRing} {
		p.Bodies[body].rotate(fixedAxes[body], c.RotationSpeed)
	}
}

// constantMotion applies in every mode: the whale turns about the user axis
// and the fins paddle about their own axes.
func constantMotion(p *Params, c Controls) {
	p.Bodies[Whale].rotate(c.RotationAxis, c.RotationSpeed)
	p.FinLeft.rotate(FinLeftAxis, c.RotationSpeed)
	p.FinLeft.scale(c.FinScale)
	p.FinRight.rotate(FinRightAxis, c.RotationSpeed)
	p.FinRight.scale(c.FinScale)
}
