// SPDX-License-Identifier: MIT
package scene

import (
	"math"
	"time"

	"orbit/internal/fusion"
	"orbit/internal/palette"
	"orbit/internal/spectrum"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Node names, matching the model names a renderer loads.
const (
	WhaleNode     = "whale"
	FinLeftNode   = "whale/fin_left"
	FinRightNode  = "whale/fin_right"
	AstronautNode = "astronaut"
	InnerRingNode = "inner_ring"
	OuterRingNode = "outer_ring"
)

// Material options understood by the dither shader.
const (
	OptionShaded = 0
	OptionDither = 1
)

// Node is one transformable object in the scene.
type Node struct {
	Name        string
	Position    r3.Vec
	Orientation quat.Number // unit quaternion, object to parent
	Scale       float64
}

const (
	whale = iota
	finLeft
	finRight
	astronaut
	innerRing
	outerRing
	numNodes
)

var bodyNodes = [...]int{
	fusion.Whale:     whale,
	fusion.Astronaut: astronaut,
	fusion.InnerRing: innerRing,
	fusion.OuterRing: outerRing,
}

// Driver owns the scene graph the fusion engine drives. It is used from
// the render goroutine only.
type Driver struct {
	nodes   [numNodes]Node
	dither  bool
	palette palette.Palette

	mode  fusion.Mode
	bands spectrum.Bands
	seq   uint64
}

// NewDriver returns a scene in its rest pose with the default palette.
func NewDriver() *Driver {
	d := &Driver{palette: palette.Default()}
	names := [numNodes]string{WhaleNode, FinLeftNode, FinRightNode, AstronautNode, InnerRingNode, OuterRingNode}
	for i, name := range names {
		d.nodes[i] = Node{Name: name, Orientation: quat.Number{Real: 1}, Scale: 1}
	}
	d.nodes[finLeft].Position = r3.Vec{X: -0.15, Y: -0.075}
	d.nodes[finRight].Position = r3.Vec{X: 0.15, Y: -0.075}
	return d
}

// Apply composes the frame's rotations onto each node and sets the scales
// the frame drives.
func (d *Driver) Apply(p fusion.Params) {
	for body, idx := range bodyNodes {
		applyBody(&d.nodes[idx], &p.Bodies[body])
	}
	applyBody(&d.nodes[finLeft], &p.FinLeft)
	applyBody(&d.nodes[finRight], &p.FinRight)

	d.mode = p.Mode
	d.bands = p.Bands
	d.seq++
}

func applyBody(n *Node, p *fusion.BodyParams) {
	for _, r := range p.Rotations() {
		n.Orientation = Rotate(n.Orientation, r.Axis, r.Angle)
	}
	if p.Scaled {
		n.Scale = p.Scale
	}
}

// Rotate turns q by angle radians about a unit axis given in object space,
// q·r, and renormalises the result to stop drift.
func Rotate(q quat.Number, axis r3.Vec, angle float64) quat.Number {
	half := angle / 2
	s := math.Sin(half)
	r := quat.Number{Real: math.Cos(half), Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}

	out := quat.Mul(q, r)
	if n := quat.Abs(out); n > 0 && !math.IsInf(n, 0) {
		out = quat.Scale(1/n, out)
	}
	return out
}

// Node returns a copy of the named node.
func (d *Driver) Node(name string) (Node, bool) {
	for _, n := range d.nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// SetDither selects the dither material option.
func (d *Driver) SetDither(on bool) {
	d.dither = on
}

// SetPalette replaces the palette pushed to materials.
func (d *Driver) SetPalette(p palette.Palette) {
	d.palette = p
}

// Reset returns every node to its rest pose.
func (d *Driver) Reset() {
	fresh := NewDriver()
	fresh.dither, fresh.palette = d.dither, d.palette
	*d = *fresh
}

// Background is the clear colour at the given elapsed time: the red channel
// follows cos(t) with t in seconds.
func Background(elapsed time.Duration) [3]float64 {
	ms := float64(elapsed) / float64(time.Millisecond)
	return [3]float64{math.Cos(ms / 1000), 0.4, 0.4}
}
