// SPDX-License-Identifier: MIT
package session

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"orbit/internal/config"
	"orbit/internal/fusion"
)

// Controls holds the user inputs read by the render loop each frame. The
// CLI and the terminal monitor write them from their own goroutines.
type Controls struct {
	mu     sync.Mutex
	speed  float64
	axis   r3.Vec
	whale  float64
	fin    float64
	dither bool
}

// NewControls seeds the controls from the render configuration.
func NewControls(cfg config.RenderConfig) *Controls {
	a := cfg.RotationAxis
	return &Controls{
		speed:  cfg.RotationSpeed,
		axis:   r3.Vec{X: a[0], Y: a[1], Z: a[2]},
		whale:  cfg.WhaleScale,
		fin:    cfg.FinScale,
		dither: cfg.Dither,
	}
}

// SetRotationSpeed sets the whale rotation speed in radians per frame.
func (c *Controls) SetRotationSpeed(v float64) {
	c.mu.Lock()
	c.speed = v
	c.mu.Unlock()
}

// AdjustRotationSpeed adds delta to the rotation speed and returns the result.
func (c *Controls) AdjustRotationSpeed(delta float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed += delta
	return c.speed
}

// SetRotationAxis sets the whale axis. It is normalised when used, so any
// non-zero vector is accepted.
func (c *Controls) SetRotationAxis(v r3.Vec) {
	c.mu.Lock()
	c.axis = v
	c.mu.Unlock()
}

func (c *Controls) SetWhaleScale(v float64) {
	c.mu.Lock()
	c.whale = v
	c.mu.Unlock()
}

func (c *Controls) SetFinScale(v float64) {
	c.mu.Lock()
	c.fin = v
	c.mu.Unlock()
}

func (c *Controls) SetDither(on bool) {
	c.mu.Lock()
	c.dither = on
	c.mu.Unlock()
}

// ToggleDither flips the dither effect and returns the new value.
func (c *Controls) ToggleDither() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dither = !c.dither
	return c.dither
}

func (c *Controls) Dither() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dither
}

// Fusion returns the values consumed by the fusion engine.
func (c *Controls) Fusion() fusion.Controls {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fusion.Controls{
		RotationSpeed: c.speed,
		RotationAxis:  c.axis,
		WhaleScale:    c.whale,
		FinScale:      c.fin,
	}
}
