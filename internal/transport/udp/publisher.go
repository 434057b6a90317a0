// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	applog "orbit/internal/log"
	"orbit/internal/scene"
)

// FrameProvider supplies the most recent scene frame.
type FrameProvider interface {
	LatestFrame() (scene.Frame, bool)
}

// UDPPublisher periodically fetches the latest scene frame, packs it into
// the binary layout in packet.go and sends it with a UDPSender. It runs in
// its own goroutine managed by Start and Stop, so the send rate is
// independent of the render rate.
type UDPPublisher struct {
	sender   *UDPSender
	frames   FrameProvider
	interval time.Duration

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Signals the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32
	lastFrame   uint64

	packetBuffer *bytes.Buffer // Reusable buffer for constructing the binary packet.
}

// NewUDPPublisher creates a publisher. An interval <= 0 defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender, frames FrameProvider) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if frames == nil {
		return nil, fmt.Errorf("UDPPublisher: frame provider cannot be nil")
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}
	applog.Infof("UDPPublisher: Initializing (Interval: %s)", interval)

	return &UDPPublisher{
		sender:       sender,
		frames:       frames,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture locals for the goroutine to avoid races on p.ticker/p.doneChan.
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		applog.Debugf("UDPPublisher: Stop called but not running.")
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("UDPPublisher: Publisher goroutine finished.")
	return nil
}

// buildAndSendPacket sends the latest frame if it is new since the last send.
func (p *UDPPublisher) buildAndSendPacket() {
	frame, ok := p.frames.LatestFrame()
	if !ok || (frame.Seq == p.lastFrame && p.sequenceNum > 0) {
		return
	}

	p.sequenceNum++
	if err := encodePacket(p.packetBuffer, p.sequenceNum, time.Now().UnixNano(), frame); err != nil {
		applog.Errorf("UDPPublisher: Error packing frame %d: %v", frame.Seq, err)
		return
	}
	p.lastFrame = frame.Seq

	if err := p.sender.Send(p.packetBuffer.Bytes()); err == nil {
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
	}
}

// Close implements io.Closer. It stops the publisher goroutine.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
