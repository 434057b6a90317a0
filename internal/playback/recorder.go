// SPDX-License-Identifier: MIT
package playback

import (
	"fmt"
	"math"
	"os"
	"sync"

	"orbit/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder is a Tap that writes what is played to a 16-bit mono WAV file.
type Recorder struct {
	mu        sync.Mutex
	file      *os.File
	encoder   *wav.Encoder
	sampleBuf *audio.IntBuffer // reusable buffer for format conversion
	written   int
}

// NewRecorder creates filename and prepares a WAV encoder for it.
func NewRecorder(filename string, sampleRate int) (*Recorder, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	return &Recorder{
		file:    file,
		encoder: wav.NewEncoder(file, sampleRate, 16, 1, 1),
		sampleBuf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			Data:           make([]int, 0, 4096),
			SourceBitDepth: 16,
		},
	}, nil
}

// Write converts samples to 16-bit PCM and appends them to the file.
func (r *Recorder) Write(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.encoder == nil {
		return
	}

	data := r.sampleBuf.Data[:0]
	for _, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		data = append(data, int(math.Round(v*math.MaxInt16)))
	}
	r.sampleBuf.Data = data

	if err := r.encoder.Write(r.sampleBuf); err != nil {
		log.Errorf("Recorder: error writing to WAV file: %v", err)
		return
	}
	r.written += len(samples)
}

// Frames is the number of samples written so far.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Close finalises the WAV header and closes the file. It is safe to call twice.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder != nil {
		if err := r.encoder.Close(); err != nil {
			return err
		}
		r.encoder = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return err
		}
		r.file = nil
	}
	return nil
}
