// SPDX-License-Identifier: MIT
package playback

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"orbit/internal/decode"
	"orbit/internal/log"

	"github.com/gordonklaus/portaudio"
)

// DeviceConfig selects the output device and buffering.
type DeviceConfig struct {
	DeviceID        int
	FramesPerBuffer int
	LowLatency      bool
}

// Device plays through a PortAudio output stream. PortAudio must be
// initialised by the caller.
type Device struct {
	config DeviceConfig
	taps   []Tap

	device  *portaudio.DeviceInfo
	latency time.Duration

	mu       sync.Mutex
	stream   *portaudio.Stream
	cur      *cursor
	mono     []float32 // pre-allocated callback scratch
	channels int
	done     chan struct{}
	doneOnce *sync.Once
}

// NewDevice resolves the output device. The stream is opened per track so
// it can follow the track's sample rate.
func NewDevice(cfg DeviceConfig, taps ...Tap) (*Device, error) {
	device, err := OutputDevice(cfg.DeviceID)
	if err != nil {
		return nil, err
	}
	if device.MaxOutputChannels < 1 {
		return nil, fmt.Errorf("device %s does not support output", device.Name)
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = 512
	}

	d := &Device{
		config:   cfg,
		taps:     taps,
		device:   device,
		mono:     make([]float32, cfg.FramesPerBuffer),
		channels: min(2, device.MaxOutputChannels),
		done:     closedChan,
	}
	if cfg.LowLatency {
		d.latency = device.DefaultLowOutputLatency
	} else {
		d.latency = device.DefaultHighOutputLatency
	}
	return d, nil
}

// Play opens and starts an output stream for track.
func (d *Device) Play(track *decode.Track) error {
	if err := validTrack(track); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream != nil {
		select {
		case <-d.done:
			d.closeStreamLocked()
		default:
			return ErrPlaying
		}
	}

	d.cur = newCursor(track, d.taps)
	d.done = make(chan struct{})
	d.doneOnce = &sync.Once{}

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   d.device,
			Channels: d.channels,
			Latency:  d.latency,
		},
		FramesPerBuffer: d.config.FramesPerBuffer,
		SampleRate:      float64(track.SampleRate),
	}

	cur, done, once := d.cur, d.done, d.doneOnce
	stream, err := portaudio.OpenStream(params, func(out []float32) {
		d.processOutput(out, cur, done, once)
	})
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	d.stream = stream

	log.Infof("Device: playing %s on %s (%d Hz, %d ch)", track.Name(), d.device.Name, track.SampleRate, d.channels)
	return nil
}

// processOutput is the audio callback.
// Performance Critical:
// - Runs on the PortAudio thread
// - Uses pre-allocated buffers only
func (d *Device) processOutput(out []float32, cur *cursor, done chan struct{}, once *sync.Once) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	frames := len(out) / d.channels
	mono := d.mono[:min(frames, len(d.mono))]
	finished := cur.next(mono)

	for i := range frames {
		var s float32
		if i < len(mono) {
			s = mono[i]
		}
		for c := range d.channels {
			out[i*d.channels+c] = s
		}
	}

	if finished {
		once.Do(func() { close(done) })
	}
}

// Stop halts the stream and releases it.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeStreamLocked()
}

func (d *Device) closeStreamLocked() error {
	if d.stream == nil {
		return nil
	}
	stream := d.stream
	d.stream = nil
	if d.doneOnce != nil {
		done := d.done
		d.doneOnce.Do(func() { close(done) })
	}

	if err := stream.Stop(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to stop output stream: %w", err)
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("failed to close output stream: %w", err)
	}
	return nil
}

// Done is closed when the current track finishes or is stopped.
func (d *Device) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Position is the playing time of the current track.
func (d *Device) Position() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cur.position()
}

// Level is the peak of the last buffer played.
func (d *Device) Level() float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cur.peak()
}
