// SPDX-License-Identifier: MIT
package playback

import (
	"sync"
	"time"

	"orbit/internal/decode"
	"orbit/internal/log"
)

// Headless plays a track against the wall clock without an audio device,
// delivering one buffer per buffer period.
type Headless struct {
	framesPerBuffer int
	taps            []Tap

	mu   sync.Mutex
	cur  *cursor
	done chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewHeadless returns a clock-driven player.
func NewHeadless(framesPerBuffer int, taps ...Tap) *Headless {
	if framesPerBuffer <= 0 {
		framesPerBuffer = 512
	}
	return &Headless{framesPerBuffer: framesPerBuffer, taps: taps, done: closedChan}
}

// Play starts the clock for track.
func (h *Headless) Play(track *decode.Track) error {
	if err := validTrack(track); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
	default:
		return ErrPlaying
	}

	h.cur = newCursor(track, h.taps)
	h.done = make(chan struct{})
	h.stop = make(chan struct{})

	period := time.Duration(h.framesPerBuffer) * time.Second / time.Duration(track.SampleRate)
	log.Debugf("Headless: playing %s, %d frames every %s", track.Name(), h.framesPerBuffer, period)

	h.wg.Add(1)
	go h.run(h.cur, period, h.stop, h.done)
	return nil
}

func (h *Headless) run(cur *cursor, period time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer h.wg.Done()
	defer close(done)

	buf := make([]float32, h.framesPerBuffer)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if cur.next(buf) {
				return
			}
		}
	}
}

// Stop ends playback early and waits for the clock goroutine.
func (h *Headless) Stop() error {
	h.mu.Lock()
	stop := h.stop
	h.stop = nil
	h.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	h.wg.Wait()
	return nil
}

// Done is closed when the current track finishes or is stopped.
func (h *Headless) Done() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// Position is the playing time of the current track.
func (h *Headless) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cur.position()
}

// Level is the peak of the last buffer played.
func (h *Headless) Level() float32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cur.peak()
}
