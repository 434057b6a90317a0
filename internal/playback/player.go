// SPDX-License-Identifier: MIT
/*
Package playback plays a decoded track and taps every buffer it outputs
into the live analyser, so the spectrum reflects what is heard.

Two players share one cursor implementation:
  - Device streams through PortAudio to an output device
  - Headless advances on a clock with no audio hardware

Thread Safety:
  - The cursor position and level meter are atomics
  - Taps are called from the audio callback (Device) or the clock
    goroutine (Headless), never concurrently with each other
*/
package playback

import (
	"errors"
	"math"
	"sync/atomic"
	"time"

	"orbit/internal/decode"
)

var (
	// ErrNoTrack is returned by Play for a nil or empty track.
	ErrNoTrack = errors.New("playback: no track")

	// ErrPlaying is returned by Play while a track is already playing.
	ErrPlaying = errors.New("playback: already playing")
)

// Player plays one track at a time.
type Player interface {
	Play(track *decode.Track) error
	Stop() error
	Done() <-chan struct{}
	Position() time.Duration
	Level() float32
}

// Tap receives a copy of the mono samples as they are played.
type Tap interface {
	Write(samples []float32)
}

// cursor walks a track buffer by buffer and fans each buffer out to the taps.
type cursor struct {
	samples    []float32
	sampleRate int
	pos        atomic.Int64
	level      atomic.Uint32 // float32 bits of the last buffer's peak
	taps       []Tap
}

func newCursor(track *decode.Track, taps []Tap) *cursor {
	return &cursor{samples: track.Samples, sampleRate: track.SampleRate, taps: taps}
}

// next copies up to len(dst) samples into dst, zero-fills the rest, taps
// the played part and reports whether the track has been exhausted.
func (c *cursor) next(dst []float32) (finished bool) {
	pos := int(c.pos.Load())
	n := copy(dst, c.samples[min(pos, len(c.samples)):])
	clear(dst[n:])
	c.pos.Store(int64(pos + n))

	var peak float32
	for _, s := range dst[:n] {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	c.level.Store(math.Float32bits(peak))

	if n > 0 {
		for _, t := range c.taps {
			t.Write(dst[:n])
		}
	}
	return pos+n >= len(c.samples)
}

func (c *cursor) position() time.Duration {
	if c == nil || c.sampleRate <= 0 {
		return 0
	}
	return time.Duration(c.pos.Load()) * time.Second / time.Duration(c.sampleRate)
}

func (c *cursor) peak() float32 {
	if c == nil {
		return 0
	}
	return math.Float32frombits(c.level.Load())
}

func validTrack(track *decode.Track) error {
	if track == nil || len(track.Samples) == 0 || track.SampleRate <= 0 {
		return ErrNoTrack
	}
	return nil
}

// closedChan is returned by Done before anything has played.
var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()
