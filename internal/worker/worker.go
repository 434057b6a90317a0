// SPDX-License-Identifier: MIT
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"orbit/internal/log"
	"orbit/internal/mir"

	"github.com/google/uuid"
)

var (
	// ErrBusy is returned by Submit while a previous track is still being analysed.
	ErrBusy = errors.New("worker: analysis already in flight")

	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("worker: closed")

	// ErrTimeout is delivered in a Result when extraction exceeds the timeout.
	ErrTimeout = errors.New("worker: analysis timed out")
)

// ExtractFunc computes descriptors for a mono signal.
type ExtractFunc func(samples []float32, sampleRate int) (mir.Descriptors, error)

// request carries a private copy of the caller's samples.
type request struct {
	trackID    string
	samples    []float32
	sampleRate int
}

// Result is delivered once per submitted track.
type Result struct {
	TrackID     string
	Descriptors mir.Descriptors
	Err         error
	Elapsed     time.Duration
}

// Option configures a Worker.
type Option func(*Worker)

// WithTimeout bounds a single extraction. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(w *Worker) { w.timeout = d }
}

// WithExtractor replaces mir.Extract.
func WithExtractor(fn ExtractFunc) Option {
	return func(w *Worker) { w.extract = fn }
}

// Worker runs descriptor extraction on one background goroutine. It shares
// nothing with its caller: samples are copied on Submit and results are
// values received from Results.
type Worker struct {
	extract ExtractFunc
	timeout time.Duration

	requests chan request
	results  chan Result

	mu     sync.Mutex
	closed bool
	busy   atomic.Bool

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts the worker goroutine.
func New(opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		extract:  mir.Extract,
		requests: make(chan request, 1),
		results:  make(chan Result, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.loop()
	return w
}

// Submit queues a track for analysis and returns the ID its Result will carry.
// The samples are copied; the caller may reuse the slice immediately.
func (w *Worker) Submit(samples []float32, sampleRate int) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return "", ErrClosed
	}
	if !w.busy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}

	req := request{
		trackID:    uuid.NewString(),
		samples:    make([]float32, len(samples)),
		sampleRate: sampleRate,
	}
	copy(req.samples, samples)

	// busy guarantees the single slot is free.
	w.requests <- req
	log.Debugf("Worker: queued track %s (%d samples @ %d Hz)", req.trackID, len(samples), sampleRate)
	return req.trackID, nil
}

// Busy reports whether an extraction is in flight or its result is undelivered.
func (w *Worker) Busy() bool {
	return w.busy.Load()
}

// Results delivers one Result per accepted Submit. It is closed by Close.
func (w *Worker) Results() <-chan Result {
	return w.results
}

// Close stops the worker and waits for its goroutine. A result that was
// not yet received is dropped.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()

		w.cancel()
		w.wg.Wait()
		close(w.results)
		log.Debugf("Worker: closed")
	})
	return nil
}

func (w *Worker) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case req := <-w.requests:
			res := w.run(req)
			select {
			case w.results <- res:
			case <-w.ctx.Done():
				return
			}
			w.busy.Store(false)
		}
	}
}

// run executes one extraction, bounded by the timeout and by Close.
func (w *Worker) run(req request) Result {
	start := time.Now()

	type outcome struct {
		d   mir.Descriptors
		err error
	}
	// Buffered so an abandoned extraction can still finish and exit.
	done := make(chan outcome, 1)
	go func() {
		d, err := w.extract(req.samples, req.sampleRate)
		done <- outcome{d, err}
	}()

	var timeout <-chan time.Time
	if w.timeout > 0 {
		timer := time.NewTimer(w.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	res := Result{TrackID: req.trackID}
	select {
	case out := <-done:
		res.Descriptors, res.Err = out.d, out.err
	case <-timeout:
		res.Err = fmt.Errorf("%w after %s", ErrTimeout, w.timeout)
	case <-w.ctx.Done():
		res.Err = ErrClosed
	}
	res.Elapsed = time.Since(start)

	if res.Err != nil {
		log.Warnf("Worker: track %s failed after %s: %v", req.trackID, res.Elapsed, res.Err)
		res.Descriptors = mir.Descriptors{}
	} else {
		log.Infof("Worker: track %s analysed in %s: %s", req.trackID, res.Elapsed.Round(time.Millisecond), res.Descriptors)
	}
	return res
}
