// SPDX-License-Identifier: MIT
package store

import (
	"sync"
	"testing"

	"orbit/internal/mir"

	"github.com/stretchr/testify/assert"
)

func TestStore_EmptyUntilSet(t *testing.T) {
	s := New()
	d, ok := s.Get()
	assert.False(t, ok)
	assert.Equal(t, mir.Descriptors{}, d)
	assert.Equal(t, AwaitingDescriptors, s.Mode())
}

func TestStore_LastWriteWins(t *testing.T) {
	s := New()
	s.Set(mir.Descriptors{Tempo: 100})
	s.Set(mir.Descriptors{Tempo: 140})

	d, ok := s.Get()
	assert.True(t, ok)
	assert.Equal(t, 140.0, d.Tempo)
}

func TestStore_ModeNeverReverts(t *testing.T) {
	s := New()
	s.Set(mir.Descriptors{Tempo: 120})
	assert.Equal(t, Active, s.Mode())

	s.Set(mir.Descriptors{})
	assert.Equal(t, Active, s.Mode(), "a zero value is still a stored result")
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New()
	s.Set(mir.Descriptors{Tempo: 90})
	d, _ := s.Get()
	d.Tempo = 1

	again, _ := s.Get()
	assert.Equal(t, 90.0, again.Tempo)
}

func TestStore_ConcurrentReaders(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 1000 {
				if i == 0 {
					s.Set(mir.Descriptors{Tempo: float64(j + 1)})
					continue
				}
				if d, ok := s.Get(); ok {
					assert.Positive(t, d.Tempo)
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, Active, s.Mode())
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "awaiting-descriptors", AwaitingDescriptors.String())
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "unknown", Mode(7).String())
}
