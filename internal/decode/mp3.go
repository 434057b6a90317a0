// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// mp3FrameBytes is one stereo frame of 16-bit little-endian output.
const mp3FrameBytes = 4

// DecodeMP3 decodes an MP3 stream. go-mp3 always produces 16-bit stereo,
// which is averaged to mono.
func DecodeMP3(r io.Reader) (*PCM, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	var samples []float32
	if n := decoder.Length(); n > 0 {
		samples = make([]float32, 0, n/mp3FrameBytes)
	}

	buf := make([]byte, 4096)
	var carry []byte
	for {
		n, err := decoder.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if len(carry) > 0 {
				chunk = append(carry, chunk...)
				carry = nil
			}
			whole := len(chunk) - len(chunk)%mp3FrameBytes
			for i := 0; i < whole; i += mp3FrameBytes {
				left := int16(chunk[i]) | int16(chunk[i+1])<<8
				right := int16(chunk[i+2]) | int16(chunk[i+3])<<8
				samples = append(samples, float32((float64(left)+float64(right))/2/32768))
			}
			if whole < len(chunk) {
				carry = append([]byte(nil), chunk[whole:]...)
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("mp3 read failed: %w", err)
		}
	}

	return &PCM{Samples: samples, SampleRate: decoder.SampleRate(), Channels: 2}, nil
}
