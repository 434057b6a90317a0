// SPDX-License-Identifier: MIT
package scene

import (
	"time"

	"orbit/internal/spectrum"
)

// NodeState is the serialisable pose of one node. Orientation is w, x, y, z.
type NodeState struct {
	Name        string     `json:"name"`
	Scale       float64    `json:"scale"`
	Orientation [4]float64 `json:"orientation"`
	Position    [3]float64 `json:"position"`
}

// Frame is a self-contained copy of the scene for publishing.
type Frame struct {
	Seq        uint64         `json:"seq"`
	ElapsedMs  int64          `json:"elapsed_ms"`
	Mode       string         `json:"mode"`
	Bands      spectrum.Bands `json:"bands"`
	Nodes      []NodeState    `json:"nodes"`
	Background [3]float64     `json:"background"`
	Option     int            `json:"option"`
	Palette    []float64      `json:"palette"`
}

// Frame captures the current scene.
func (d *Driver) Frame(elapsed time.Duration) Frame {
	f := Frame{
		Seq:        d.seq,
		ElapsedMs:  elapsed.Milliseconds(),
		Mode:       d.mode.String(),
		Bands:      d.bands,
		Nodes:      make([]NodeState, 0, numNodes),
		Background: Background(elapsed),
		Option:     OptionShaded,
		Palette:    d.palette.Flatten(),
	}
	if d.dither {
		f.Option = OptionDither
	}
	for _, n := range d.nodes {
		q := n.Orientation
		f.Nodes = append(f.Nodes, NodeState{
			Name:        n.Name,
			Scale:       n.Scale,
			Orientation: [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag},
			Position:    [3]float64{n.Position.X, n.Position.Y, n.Position.Z},
		})
	}
	return f
}

// Node returns the named node state from the frame.
func (f Frame) Node(name string) (NodeState, bool) {
	for _, n := range f.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return NodeState{}, false
}
