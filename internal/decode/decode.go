// SPDX-License-Identifier: MIT
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither WAV nor MP3.
	ErrUnsupportedFormat = errors.New("decode: unsupported audio format")

	// ErrNoSamples is returned when a file decodes to zero samples.
	ErrNoSamples = errors.New("decode: no samples")
)

// Track is a fully decoded mono signal plus whatever tags the file carries.
type Track struct {
	Path       string
	Format     string // "wav" or "mp3"
	Title      string
	Artist     string
	Album      string
	SampleRate int
	Channels   int       // channel count of the source before downmix
	Samples    []float32 // mono, [-1, 1]
}

// Duration is the playing time of the decoded signal.
func (t *Track) Duration() time.Duration {
	if t.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(t.Samples)) * time.Second / time.Duration(t.SampleRate)
}

// Name is the title, or the file name when the track is untagged.
func (t *Track) Name() string {
	if t.Artist != "" && t.Title != "" {
		return t.Artist + " - " + t.Title
	}
	if t.Title != "" {
		return t.Title
	}
	return strings.TrimSuffix(filepath.Base(t.Path), filepath.Ext(t.Path))
}

// Open decodes a WAV or MP3 file chosen by extension. Nothing is returned
// unless the whole file decoded.
func Open(path string) (*Track, error) {
	var format string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		format = "wav"
	case ".mp3":
		format = "mp3"
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open track: %w", err)
	}
	defer f.Close()

	var pcm *PCM
	switch format {
	case "wav":
		pcm, err = DecodeWAV(f)
	case "mp3":
		pcm, err = DecodeMP3(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if len(pcm.Samples) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoSamples)
	}

	t := &Track{
		Path:       path,
		Format:     format,
		SampleRate: pcm.SampleRate,
		Channels:   pcm.Channels,
		Samples:    pcm.Samples,
	}
	readTags(f, t)
	return t, nil
}

// readTags fills title, artist and album when the file carries tags.
// Untagged files are normal, so failures are ignored.
func readTags(rs io.ReadSeeker, t *Track) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return
	}
	m, err := tag.ReadFrom(rs)
	if err != nil || m == nil {
		return
	}
	t.Title = strings.TrimSpace(m.Title())
	t.Artist = strings.TrimSpace(m.Artist())
	t.Album = strings.TrimSpace(m.Album())
}

// PCM is a decoded mono signal.
type PCM struct {
	Samples    []float32
	SampleRate int
	Channels   int
}
