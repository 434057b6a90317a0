// SPDX-License-Identifier: MIT
package transport

import (
	"errors"

	"orbit/internal/mir"
	"orbit/internal/scene"
)

// Transport defines a generic interface for sending frames or events.
// Implementations should be thread-safe and must not block the render loop.
type Transport interface {
	Send(data any) error
	Close() error
}

// Message types.
const (
	TypeFrame            = "frame"
	TypeTrackLoaded      = "track_loaded"
	TypeAnalysisComplete = "analysis_complete"
	TypeAnalysisFailed   = "analysis_failed"
)

// Message is the JSON envelope sent to clients.
type Message struct {
	Type        string           `json:"type"`
	TrackID     string           `json:"track_id,omitempty"`
	Track       *TrackInfo       `json:"track,omitempty"`
	Frame       *scene.Frame     `json:"frame,omitempty"`
	Descriptors *mir.Descriptors `json:"descriptors,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// TrackInfo describes a loaded track.
type TrackInfo struct {
	Name       string  `json:"name"`
	Format     string  `json:"format"`
	SampleRate int     `json:"sample_rate"`
	Seconds    float64 `json:"seconds"`
}

// Multi fans a message out to several transports.
type Multi []Transport

// Send delivers data to every transport and joins their errors.
func (m Multi) Send(data any) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Multi(nil)
