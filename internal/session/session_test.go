// SPDX-License-Identifier: MIT
package session

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/spatial/r3"

	"orbit/internal/config"
	"orbit/internal/decode"
	"orbit/internal/fusion"
	"orbit/internal/mir"
	"orbit/internal/playback"
	"orbit/internal/store"
	"orbit/internal/transport"
	"orbit/internal/worker"
	"orbit/pkg/utils"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testDescriptors = mir.Descriptors{
	Tempo:             120,
	Confidence:        0.8,
	Danceability:      1.2,
	Energy:            500,
	DynamicComplexity: 4,
	Loudness:          -12,
}

type recordingListener struct {
	mu       sync.Mutex
	loaded   []string
	complete []string
	failed   []error
}

func (r *recordingListener) TrackLoaded(id string, _ *decode.Track) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = append(r.loaded, id)
}

func (r *recordingListener) AnalysisComplete(id string, _ mir.Descriptors) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.complete = append(r.complete, id)
}

func (r *recordingListener) AnalysisFailed(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
}

type recordingTransport struct {
	mu     sync.Mutex
	types  []string
	closed bool
}

func (r *recordingTransport) Send(data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg, ok := data.(transport.Message); ok {
		r.types = append(r.types, msg.Type)
	}
	return nil
}

func (r *recordingTransport) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingTransport) count(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.types {
		if t == typ {
			n++
		}
	}
	return n
}

func headlessConfig() *config.Config {
	cfg := config.Default()
	cfg.Audio.Headless = true
	cfg.Audio.FramesPerBuffer = 256
	cfg.Analysis.Timeout = 5 * time.Second
	return cfg
}

func sineTrack(seconds float64) *decode.Track {
	const rate = 8000
	samples := utils.GenerateSineWave(int(seconds*rate), rate, 440, 0.5)
	return &decode.Track{Path: "sine.wav", Format: "wav", SampleRate: rate, Channels: 1, Samples: samples}
}

func newTestSession(t *testing.T, extract worker.ExtractFunc, opts ...Option) *Session {
	t.Helper()
	opts = append(opts, WithWorkerOptions(worker.WithExtractor(extract)))
	s, err := New(headlessConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fixedExtract(d mir.Descriptors) worker.ExtractFunc {
	return func([]float32, int) (mir.Descriptors, error) { return d, nil }
}

// tickUntil renders frames until cond holds.
func tickUntil(t *testing.T, s *Session, cond func() bool) {
	t.Helper()
	var elapsed time.Duration
	require.Eventually(t, func() bool {
		elapsed += 16 * time.Millisecond
		s.tick(elapsed)
		return cond()
	}, 3*time.Second, 5*time.Millisecond)
}

func TestSession_ControlsOnlyBeforeDescriptors(t *testing.T) {
	s := newTestSession(t, fixedExtract(testDescriptors))

	s.tick(0)
	frame, ok := s.LatestFrame()
	require.True(t, ok)
	assert.Equal(t, fusion.ModeControls.String(), frame.Mode)
	assert.Equal(t, store.AwaitingDescriptors, s.Snapshot().Mode)
	assert.Zero(t, frame.Bands.Sum(), "the sampler is detached until playback starts")
}

func TestSession_LoadAnalyseAndPlay(t *testing.T) {
	listener := &recordingListener{}
	tr := &recordingTransport{}
	s := newTestSession(t, fixedExtract(testDescriptors), WithListener(listener), WithTransport(tr))

	id, err := s.LoadTrack(sineTrack(2))
	require.NoError(t, err)
	assert.True(t, s.Snapshot().Analyzing)

	tickUntil(t, s, func() bool { return s.store.Mode() == store.Active })

	frame, _ := s.LatestFrame()
	assert.Equal(t, fusion.ModeFused.String(), frame.Mode)

	listener.mu.Lock()
	assert.Equal(t, []string{id}, listener.loaded)
	assert.Equal(t, []string{id}, listener.complete)
	assert.Empty(t, listener.failed)
	listener.mu.Unlock()

	select {
	case <-s.PlaybackDone():
		t.Fatal("playback should have started after analysis")
	default:
	}

	// The analyser is fed by playback, so the bands come alive.
	tickUntil(t, s, func() bool {
		f, _ := s.LatestFrame()
		return f.Bands.Sum() > 0
	})

	snap := s.Snapshot()
	assert.False(t, snap.Analyzing)
	assert.Equal(t, "sine", snap.Track)
	assert.Equal(t, testDescriptors, snap.Descriptors)
	assert.NoError(t, snap.Err)

	assert.Equal(t, 1, tr.count(transport.TypeTrackLoaded))
	assert.Equal(t, 1, tr.count(transport.TypeAnalysisComplete))
	assert.Positive(t, tr.count(transport.TypeFrame))

	require.NoError(t, s.Close())
	tr.mu.Lock()
	assert.True(t, tr.closed)
	tr.mu.Unlock()
}

func TestSession_AnalysisFailure(t *testing.T) {
	listener := &recordingListener{}
	tr := &recordingTransport{}
	failure := errors.New("no beat")
	s := newTestSession(t, func([]float32, int) (mir.Descriptors, error) {
		return mir.Descriptors{}, failure
	}, WithListener(listener), WithTransport(tr))

	_, err := s.LoadTrack(sineTrack(1))
	require.NoError(t, err)

	tickUntil(t, s, func() bool { return s.Snapshot().Err != nil })
	for range 5 {
		s.tick(time.Second)
	}

	assert.ErrorIs(t, s.Snapshot().Err, failure)
	assert.Equal(t, store.AwaitingDescriptors, s.store.Mode())
	frame, _ := s.LatestFrame()
	assert.Equal(t, fusion.ModeControls.String(), frame.Mode)

	listener.mu.Lock()
	assert.Len(t, listener.failed, 1, "a failure is surfaced once")
	assert.Empty(t, listener.complete)
	listener.mu.Unlock()
	assert.Equal(t, 1, tr.count(transport.TypeAnalysisFailed))

	select {
	case <-s.PlaybackDone():
	default:
		t.Error("a track whose analysis failed must not play")
	}
}

func TestSession_SteadyToneFailsAnalysis(t *testing.T) {
	listener := &recordingListener{}
	tr := &recordingTransport{}
	s := newTestSession(t, mir.Extract, WithListener(listener), WithTransport(tr))

	_, err := s.LoadTrack(sineTrack(4))
	require.NoError(t, err)

	tickUntil(t, s, func() bool { return s.Snapshot().Err != nil })

	assert.ErrorIs(t, s.Snapshot().Err, mir.ErrDegenerateSignal)
	assert.Equal(t, store.AwaitingDescriptors, s.store.Mode())
	_, ok := s.store.Get()
	assert.False(t, ok)

	listener.mu.Lock()
	require.Len(t, listener.failed, 1)
	assert.ErrorIs(t, listener.failed[0], mir.ErrDegenerateSignal)
	assert.Empty(t, listener.complete)
	listener.mu.Unlock()
	assert.Equal(t, 1, tr.count(transport.TypeAnalysisFailed))
}

func TestSession_SecondLoadWhileAnalysing(t *testing.T) {
	release := make(chan struct{})
	s := newTestSession(t, func([]float32, int) (mir.Descriptors, error) {
		<-release
		return testDescriptors, nil
	})

	_, err := s.LoadTrack(sineTrack(1))
	require.NoError(t, err)

	_, err = s.LoadTrack(sineTrack(1))
	assert.ErrorIs(t, err, worker.ErrBusy)

	close(release)
	tickUntil(t, s, func() bool { return s.store.Mode() == store.Active })
}

func TestSession_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	data := make([]int, 8000)
	for i := range data {
		data[i] = int(8000 * math.Sin(2*math.Pi*220*float64(i)/8000))
	}
	enc := wav.NewEncoder(f, 8000, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 8000},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	listener := &recordingListener{}
	s := newTestSession(t, fixedExtract(testDescriptors), WithListener(listener))

	id, err := s.Load(context.Background(), path)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, "tone", s.Snapshot().Track)

	_, err = s.Load(context.Background(), filepath.Join(t.TempDir(), "track.flac"))
	assert.ErrorIs(t, err, decode.ErrUnsupportedFormat)

	tickUntil(t, s, func() bool { return s.store.Mode() == store.Active })
}

func TestSession_LoadCancelled(t *testing.T) {
	s := newTestSession(t, fixedExtract(testDescriptors))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Load(ctx, "missing.wav")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSession_Run(t *testing.T) {
	s := newTestSession(t, fixedExtract(testDescriptors))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		f, ok := s.LatestFrame()
		return ok && f.Seq > 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSession_ClosedRejectsLoads(t *testing.T) {
	s := newTestSession(t, fixedExtract(testDescriptors))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.LoadTrack(sineTrack(1))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSession_ExtraTapsAndFactory(t *testing.T) {
	tap := &countingTap{}
	var gotTaps int
	s := newTestSession(t, fixedExtract(testDescriptors),
		WithTaps(tap),
		WithPlayerFactory(func(taps ...playback.Tap) (playback.Player, error) {
			gotTaps = len(taps)
			return playback.NewHeadless(128, taps...), nil
		}))
	assert.Equal(t, 2, gotTaps, "analyser plus the extra tap")

	_, err := s.LoadTrack(sineTrack(1))
	require.NoError(t, err)
	tickUntil(t, s, func() bool { return tap.samples() > 0 })
}

func TestSession_PlayerFactoryError(t *testing.T) {
	_, err := New(headlessConfig(), WithPlayerFactory(func(...playback.Tap) (playback.Player, error) {
		return nil, errors.New("no device")
	}))
	assert.ErrorContains(t, err, "no device")
}

func TestSession_BadPalette(t *testing.T) {
	cfg := headlessConfig()
	cfg.Render.PalettePath = filepath.Join(t.TempDir(), "missing.png")
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestSession_DitherReachesFrame(t *testing.T) {
	s := newTestSession(t, fixedExtract(testDescriptors))

	s.tick(0)
	f, _ := s.LatestFrame()
	assert.Equal(t, 0, f.Option)

	assert.True(t, s.Controls().ToggleDither())
	s.tick(time.Millisecond)
	f, _ = s.LatestFrame()
	assert.Equal(t, 1, f.Option)
}

type countingTap struct {
	mu sync.Mutex
	n  int
}

func (c *countingTap) Write(samples []float32) {
	c.mu.Lock()
	c.n += len(samples)
	c.mu.Unlock()
}

func (c *countingTap) samples() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestControls(t *testing.T) {
	cfg := config.Default().Render
	cfg.RotationAxis = [3]float64{1, 0, 0}
	c := NewControls(cfg)

	got := c.Fusion()
	assert.Equal(t, cfg.RotationSpeed, got.RotationSpeed)
	assert.Equal(t, r3.Vec{X: 1}, got.RotationAxis)

	assert.InDelta(t, cfg.RotationSpeed+0.05, c.AdjustRotationSpeed(0.05), 1e-12)
	c.SetRotationSpeed(0.2)
	c.SetRotationAxis(r3.Vec{Z: 2})
	c.SetWhaleScale(3)
	c.SetFinScale(0.5)
	c.SetDither(true)

	got = c.Fusion()
	assert.Equal(t, fusion.Controls{RotationSpeed: 0.2, RotationAxis: r3.Vec{Z: 2}, WhaleScale: 3, FinScale: 0.5}, got)
	assert.True(t, c.Dither())
	assert.False(t, c.ToggleDither())
}
