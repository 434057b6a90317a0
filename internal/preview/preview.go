// SPDX-License-Identifier: MIT
// Package preview draws a static waveform image of a track, the offline
// counterpart of the live spectrum.
package preview

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mdlayher/waveform"

	"orbit/internal/decode"
	"orbit/internal/log"
	"orbit/internal/palette"
)

// Options controls the rendered image.
type Options struct {
	Resolution uint // waveform columns per second of audio
	ScaleX     uint
	ScaleY     uint
	Foreground color.Color
	Background color.Color
}

// DefaultOptions draws in the default palette colour on black.
func DefaultOptions() Options {
	return Options{
		Resolution: 1024,
		ScaleX:     2,
		ScaleY:     2,
		Foreground: palette.DefaultColor.RGBA(),
		Background: color.Black,
	}
}

func (o Options) funcs() []waveform.OptionsFunc {
	return []waveform.OptionsFunc{
		waveform.Resolution(o.Resolution),
		waveform.Scale(o.ScaleX, o.ScaleY),
		waveform.FGColorFunction(waveform.SolidColor(o.Foreground)),
		waveform.BGColorFunction(waveform.SolidColor(o.Background)),
	}
}

// Render draws the WAV stream r.
func Render(r io.Reader, opts Options) (image.Image, error) {
	wf, err := waveform.New(r, opts.funcs()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create waveform: %w", err)
	}
	vals, err := wf.Compute()
	if err != nil {
		return nil, fmt.Errorf("failed to compute waveform: %w", err)
	}
	if len(vals) == 0 {
		return nil, decode.ErrNoSamples
	}
	return wf.Draw(vals), nil
}

// RenderFile draws inputPath into a PNG at outputPath. WAV files are read
// directly; anything else decode.Open understands is first converted to a
// temporary mono WAV.
func RenderFile(inputPath, outputPath string, opts Options) (err error) {
	src := inputPath
	if ext := strings.ToLower(filepath.Ext(inputPath)); ext != ".wav" && ext != ".wave" {
		track, err := decode.Open(inputPath)
		if err != nil {
			return err
		}
		tmp, err := writeTempWAV(track)
		if err != nil {
			return err
		}
		defer os.Remove(tmp)
		src = tmp
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	defer in.Close()

	img, err := Render(in, opts)
	if err != nil {
		return err
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	if err := png.Encode(out, img); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	b := img.Bounds()
	log.Infof("Preview: wrote %s (%dx%d)", outputPath, b.Dx(), b.Dy())
	return nil
}

// writeTempWAV stores a decoded track as 16-bit mono PCM.
func writeTempWAV(track *decode.Track) (string, error) {
	f, err := os.CreateTemp("", "orbit-preview-*.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	data := make([]int, len(track.Samples))
	for i, s := range track.Samples {
		data[i] = int(max(-1, min(1, s)) * 32767)
	}

	enc := wav.NewEncoder(f, track.SampleRate, 16, 1, 1)
	werr := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: track.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	})
	err = errors.Join(werr, enc.Close(), f.Close())
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp wav: %w", err)
	}
	return f.Name(), nil
}
