// SPDX-License-Identifier: MIT
package store

import (
	"sync/atomic"

	"orbit/internal/mir"
)

// Mode reports whether descriptors have ever been stored.
type Mode int32

const (
	// AwaitingDescriptors is the initial mode; fusion runs on user controls only.
	AwaitingDescriptors Mode = iota
	// Active means descriptors are available. There is no way back.
	Active
)

func (m Mode) String() string {
	switch m {
	case AwaitingDescriptors:
		return "awaiting-descriptors"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// Store holds the descriptors of the current track. Writes are rare (one
// per loaded track) and reads happen every frame, so the value is swapped
// atomically rather than guarded by a lock.
type Store struct {
	current atomic.Pointer[mir.Descriptors]
}

// New returns an empty store in AwaitingDescriptors mode.
func New() *Store {
	return &Store{}
}

// Set replaces the stored descriptors. The last write wins.
func (s *Store) Set(d mir.Descriptors) {
	s.current.Store(&d)
}

// Get returns a copy of the stored descriptors, or false if none were set.
func (s *Store) Get() (mir.Descriptors, bool) {
	p := s.current.Load()
	if p == nil {
		return mir.Descriptors{}, false
	}
	return *p, true
}

// Mode reports Active once any descriptors have been set.
func (s *Store) Mode() Mode {
	if s.current.Load() == nil {
		return AwaitingDescriptors
	}
	return Active
}
