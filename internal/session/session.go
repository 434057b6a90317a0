// SPDX-License-Identifier: MIT
/*
Package session wires the scene driver together. A Session owns one of each
component and runs the render loop:

	worker result ──► store ──┐
	playback ──► analyser ──► sampler ──► fusion ──► scene ──► transports

Concurrency:
  - Run is the only goroutine that touches the fusion engine, the scene
    driver and the sampler buffer
  - Worker results reach the store only through a non-blocking receive
    at the top of each frame
  - The analyser is shared with the playback goroutine and locks itself
*/
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"orbit/internal/config"
	"orbit/internal/decode"
	"orbit/internal/fusion"
	"orbit/internal/log"
	"orbit/internal/mir"
	"orbit/internal/palette"
	"orbit/internal/playback"
	"orbit/internal/scene"
	"orbit/internal/spectrum"
	"orbit/internal/store"
	"orbit/internal/transport"
	"orbit/internal/worker"
)

// ErrClosed is returned by LoadTrack after Close.
var ErrClosed = errors.New("session: closed")

// TrackListener is notified as a track moves through the load path. Calls
// are made from the goroutine that calls LoadTrack (TrackLoaded) or from the
// render loop (the analysis callbacks) and must not block.
type TrackListener interface {
	TrackLoaded(trackID string, track *decode.Track)
	AnalysisComplete(trackID string, d mir.Descriptors)
	AnalysisFailed(trackID string, err error)
}

// PlayerFactory builds the player, given the taps it must feed.
type PlayerFactory func(taps ...playback.Tap) (playback.Player, error)

// Option configures a Session.
type Option func(*Session)

// WithPlayerFactory replaces the player selected from the audio config.
func WithPlayerFactory(f PlayerFactory) Option {
	return func(s *Session) { s.newPlayer = f }
}

// WithListener adds a TrackListener.
func WithListener(l TrackListener) Option {
	return func(s *Session) { s.listeners = append(s.listeners, l) }
}

// WithTransport sets where frames and events are published.
func WithTransport(t transport.Transport) Option {
	return func(s *Session) { s.transport = t }
}

// WithWorkerOptions passes options to the analysis worker.
func WithWorkerOptions(opts ...worker.Option) Option {
	return func(s *Session) { s.workerOpts = append(s.workerOpts, opts...) }
}

// WithTaps adds taps fed alongside the analyser, such as a recorder.
func WithTaps(taps ...playback.Tap) Option {
	return func(s *Session) { s.taps = append(s.taps, taps...) }
}

// Snapshot is a copy of the session state for display.
type Snapshot struct {
	Frame       scene.Frame
	HasFrame    bool
	Track       string
	Analyzing   bool
	Mode        store.Mode
	Descriptors mir.Descriptors
	Position    time.Duration
	Level       float32
	Controls    fusion.Controls
	Dither      bool
	Err         error // last analysis failure, if any
}

// Session is the explicit context object for one running scene.
type Session struct {
	cfg      *config.Config
	controls *Controls

	analyser *spectrum.Analyser
	sampler  *spectrum.Sampler
	engine   *fusion.Engine
	driver   *scene.Driver
	store    *store.Store
	worker   *worker.Worker
	player   playback.Player

	newPlayer  PlayerFactory
	listeners  []TrackListener
	transport  transport.Transport
	workerOpts []worker.Option
	taps       []playback.Tap

	mu       sync.Mutex
	pending  map[string]*decode.Track
	track    string
	latest   scene.Frame
	hasFrame bool
	lastErr  error
	closed   bool

	closeOnce sync.Once
}

// New builds a session from cfg. Playback does not start until a track
// has been loaded and analysed.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	analyser, err := spectrum.NewAnalyser(cfg.Audio.FFTSize, cfg.Audio.Smoothing,
		cfg.Audio.MinDecibels, cfg.Audio.MaxDecibels)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyser: %w", err)
	}

	s := &Session{
		cfg:       cfg,
		controls:  NewControls(cfg.Render),
		analyser:  analyser,
		sampler:   spectrum.NewSampler(analyser.BinCount()),
		engine:    fusion.New(),
		driver:    scene.NewDriver(),
		store:     store.New(),
		newPlayer: defaultPlayerFactory(cfg),
		pending:   make(map[string]*decode.Track),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Render.PalettePath != "" {
		p, err := palette.Load(cfg.Render.PalettePath)
		if err != nil {
			return nil, err
		}
		s.driver.SetPalette(p)
	}

	taps := append([]playback.Tap{analyser}, s.taps...)
	if s.player, err = s.newPlayer(taps...); err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	s.worker = worker.New(append([]worker.Option{worker.WithTimeout(cfg.Analysis.Timeout)}, s.workerOpts...)...)

	log.Infof("Session: ready (fft=%d, bins=%d, fps=%d)", cfg.Audio.FFTSize, analyser.BinCount(), cfg.Render.FPS)
	return s, nil
}

func defaultPlayerFactory(cfg *config.Config) PlayerFactory {
	return func(taps ...playback.Tap) (playback.Player, error) {
		if cfg.Audio.Headless {
			return playback.NewHeadless(cfg.Audio.FramesPerBuffer, taps...), nil
		}
		return playback.NewDevice(playback.DeviceConfig{
			DeviceID:        cfg.Audio.OutputDevice,
			FramesPerBuffer: cfg.Audio.FramesPerBuffer,
			LowLatency:      cfg.Audio.LowLatency,
		}, taps...)
	}
}

// Controls returns the user controls read each frame.
func (s *Session) Controls() *Controls {
	return s.controls
}

// PlaybackDone is closed when the current track stops playing. Before a
// track starts it is already closed.
func (s *Session) PlaybackDone() <-chan struct{} {
	return s.player.Done()
}

// Load decodes path and submits it for analysis. Decoding runs on its own
// goroutine so ctx can abandon a slow decode.
func (s *Session) Load(ctx context.Context, path string) (string, error) {
	type decoded struct {
		track *decode.Track
		err   error
	}
	ch := make(chan decoded, 1)
	go func() {
		t, err := decode.Open(path)
		ch <- decoded{t, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case d := <-ch:
		if d.err != nil {
			return "", d.err
		}
		return s.LoadTrack(d.track)
	}
}

// LoadTrack submits an already decoded track for analysis. Playback starts
// on the render loop once its descriptors are stored.
func (s *Session) LoadTrack(track *decode.Track) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	// Held across Submit so the render loop cannot see the result before
	// the track is registered.
	id, err := s.worker.Submit(track.Samples, track.SampleRate)
	if err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("failed to submit %s: %w", track.Name(), err)
	}
	s.pending[id] = track
	s.track = track.Name()
	s.mu.Unlock()

	log.Infof("Session: loaded %s (%s, %d Hz, %s) as %s",
		track.Name(), track.Format, track.SampleRate, track.Duration().Round(time.Millisecond), id)

	for _, l := range s.listeners {
		l.TrackLoaded(id, track)
	}
	s.publish(transport.Message{
		Type:    transport.TypeTrackLoaded,
		TrackID: id,
		Track: &transport.TrackInfo{
			Name:       track.Name(),
			Format:     track.Format,
			SampleRate: track.SampleRate,
			Seconds:    track.Duration().Seconds(),
		},
	})
	return id, nil
}

// Run drives the render loop until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	interval := s.cfg.FrameInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Infof("Session: render loop started (%s per frame)", interval)
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			log.Infof("Session: render loop stopped")
			return nil
		case <-ticker.C:
			s.tick(time.Since(start))
		}
	}
}

// tick renders one frame.
func (s *Session) tick(elapsed time.Duration) {
	s.receiveResult()

	snapshot := s.sampler.Sample()
	d, ok := s.store.Get()
	s.driver.SetDither(s.controls.Dither())
	s.driver.Apply(s.engine.Step(snapshot, d, ok, s.controls.Fusion()))
	frame := s.driver.Frame(elapsed)

	s.mu.Lock()
	s.latest, s.hasFrame = frame, true
	s.mu.Unlock()

	s.publish(transport.Message{Type: transport.TypeFrame, Frame: &frame})
}

// receiveResult takes at most one worker result without blocking.
func (s *Session) receiveResult() {
	select {
	case res, ok := <-s.worker.Results():
		if ok {
			s.handleResult(res)
		}
	default:
	}
}

func (s *Session) handleResult(res worker.Result) {
	s.mu.Lock()
	track := s.pending[res.TrackID]
	delete(s.pending, res.TrackID)
	if res.Err != nil {
		s.lastErr = res.Err
	} else {
		s.lastErr = nil
	}
	s.mu.Unlock()

	if res.Err != nil {
		log.Errorf("Session: analysis of %s failed after %s: %v", res.TrackID, res.Elapsed, res.Err)
		for _, l := range s.listeners {
			l.AnalysisFailed(res.TrackID, res.Err)
		}
		s.publish(transport.Message{Type: transport.TypeAnalysisFailed, TrackID: res.TrackID, Error: res.Err.Error()})
		return
	}

	s.store.Set(res.Descriptors)
	log.Infof("Session: analysis of %s complete in %s: %s", res.TrackID, res.Elapsed.Round(time.Millisecond), res.Descriptors)

	if track != nil {
		s.startPlayback(track)
	}

	for _, l := range s.listeners {
		l.AnalysisComplete(res.TrackID, res.Descriptors)
	}
	d := res.Descriptors
	s.publish(transport.Message{Type: transport.TypeAnalysisComplete, TrackID: res.TrackID, Descriptors: &d})
}

func (s *Session) startPlayback(track *decode.Track) {
	if err := s.player.Stop(); err != nil {
		log.Warnf("Session: failed to stop previous track: %v", err)
	}
	s.analyser.Reset()
	s.sampler.Attach(s.analyser)

	if err := s.player.Play(track); err != nil {
		log.Errorf("Session: failed to play %s: %v", track.Name(), err)
		return
	}
	log.Infof("Session: playing %s", track.Name())
}

func (s *Session) publish(msg transport.Message) {
	if s.transport == nil {
		return
	}
	if err := s.transport.Send(msg); err != nil {
		log.Debugf("Session: publish %s failed: %v", msg.Type, err)
	}
}

// LatestFrame returns the last rendered frame.
func (s *Session) LatestFrame() (scene.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasFrame
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	d, _ := s.store.Get()

	s.mu.Lock()
	snap := Snapshot{
		Frame:     s.latest,
		HasFrame:  s.hasFrame,
		Track:     s.track,
		Analyzing: len(s.pending) > 0,
		Err:       s.lastErr,
	}
	s.mu.Unlock()

	snap.Mode = s.store.Mode()
	snap.Descriptors = d
	snap.Position = s.player.Position()
	snap.Level = s.player.Level()
	snap.Controls = s.controls.Fusion()
	snap.Dither = s.controls.Dither()
	return snap
}

// Close stops playback and the worker and closes the transport. Run must
// have returned first.
func (s *Session) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		errs = append(errs, s.player.Stop(), s.worker.Close())
		if s.transport != nil {
			errs = append(errs, s.transport.Close())
		}
		log.Infof("Session: closed")
	})
	return errors.Join(errs...)
}
