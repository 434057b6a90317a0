// SPDX-License-Identifier: MIT
package spectrum

import "sync"

// Sampler hands the render loop a frequency snapshot of fixed length. The
// returned slice is owned by the sampler and overwritten on the next call.
type Sampler struct {
	mu     sync.Mutex
	source Source
	buf    []uint8
}

// NewSampler returns a sampler producing snapshots of n bins.
func NewSampler(n int) *Sampler {
	if n < 0 {
		n = 0
	}
	return &Sampler{buf: make([]uint8, n)}
}

// Attach connects the sampler to an analyser. Passing nil detaches it.
func (s *Sampler) Attach(src Source) {
	s.mu.Lock()
	s.source = src
	s.mu.Unlock()
}

// Len is the snapshot length.
func (s *Sampler) Len() int {
	return len(s.buf)
}

// Sample refreshes and returns the snapshot. With no source attached the
// snapshot is all zeros. Bins beyond the source's bin count stay zero.
func (s *Sampler) Sample() []uint8 {
	s.mu.Lock()
	src := s.source
	s.mu.Unlock()

	if src == nil {
		clear(s.buf)
		return s.buf
	}
	if n := src.BinCount(); n < len(s.buf) {
		clear(s.buf[n:])
	}
	src.ByteFrequencyData(s.buf)
	return s.buf
}
