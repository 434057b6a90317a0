// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DecodeWAV reads a PCM WAV stream and mixes it down to mono.
func DecodeWAV(r io.ReadSeeker) (*PCM, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: not a PCM wav file", ErrUnsupportedFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read wav data: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("%w: wav has no channels", ErrUnsupportedFormat)
	}

	return &PCM{
		Samples:    downmix(buf),
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}, nil
}

// downmix averages interleaved integer frames into mono floats in [-1, 1].
func downmix(buf *audio.IntBuffer) []float32 {
	channels := buf.Format.NumChannels
	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = 16
	}

	// 8-bit wav is unsigned; wider depths are signed.
	var offset float64
	full := float64(int64(1) << (depth - 1))
	if depth == 8 {
		offset = 128
	}

	frames := len(buf.Data) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			sum += (float64(buf.Data[i*channels+c]) - offset) / full
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}
