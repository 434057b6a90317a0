// SPDX-License-Identifier: MIT
// Package utils holds test signal generators and a recording transport
// shared by package tests.
package utils

import (
	"cmp"
	"math"
	"sync"
)

// MockTransport records every message instead of transmitting it.
type MockTransport struct {
	mu     sync.Mutex
	sent   []any
	closed bool
	Err    error // returned by Send and Close when set
}

// Send stores data for later inspection.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, data)
	return m.Err
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.Err
}

// Sent returns a copy of everything sent so far.
func (m *MockTransport) Sent() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.sent...)
}

func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateSineWave returns n samples of a sine at frequency Hz.
func GenerateSineWave(n int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, n)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// GenerateComplexWave returns a 440Hz fundamental plus two harmonics,
// peaking just under full scale.
func GenerateComplexWave(n int, sampleRate float64) []float32 {
	buffer := make([]float32, n)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GenerateClickTrack returns a decaying 2kHz blip every period samples.
func GenerateClickTrack(sampleRate, period, total int) []float32 {
	buffer := make([]float32, total)
	if period <= 0 {
		return buffer
	}
	for start := 0; start < total; start += period {
		for i := 0; i < 256 && start+i < total; i++ {
			decay := math.Exp(-float64(i) / 64)
			buffer[start+i] = float32(0.8 * decay * math.Sin(2*math.Pi*2000*float64(i)/float64(sampleRate)))
		}
	}
	return buffer
}

// FindPeakBin returns the index of the largest value in [startBin, endBin],
// clamping the range to the slice. Ties go to the lowest index.
func FindPeakBin[T cmp.Ordered](values []T, startBin, endBin int) int {
	if len(values) == 0 {
		return 0
	}
	startBin = max(startBin, 0)
	endBin = min(endBin, len(values)-1)

	peakBin := startBin
	for bin := startBin + 1; bin <= endBin; bin++ {
		if values[bin] > values[peakBin] {
			peakBin = bin
		}
	}
	return peakBin
}
