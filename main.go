// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"orbit/cmd"
	"orbit/internal/config"
	"orbit/internal/decode"
	"orbit/internal/log"
	"orbit/internal/mir"
	"orbit/internal/playback"
	"orbit/internal/preview"
	"orbit/internal/session"
	"orbit/internal/transport"
	"orbit/internal/transport/udp"
	"orbit/internal/tui"
	"orbit/internal/worker"
)

// main is the entry point for the scene driver.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Parse command line arguments and load configuration
//   - Configure logging
//   - Initialize PortAudio when a device is needed
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Decode the track and submit it for analysis
//   - Run the render loop and publishers
//   - Start playback once descriptors arrive
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or the end of the track
//   - Stop recording if active
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if opts.Command == "" {
		return
	}

	if err := run(opts); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(opts *cmd.Options) error {
	cfg := opts.Config
	logFile, err := configureLogging(cfg, opts.Command == cmd.CommandPlay && opts.TUIMode)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}

	needsDevice := opts.Command == cmd.CommandList ||
		(opts.Command == cmd.CommandPlay && !cfg.Audio.Headless)
	if needsDevice {
		if err := playback.Initialize(); err != nil {
			return err
		}
		defer playback.Terminate()
	}

	switch opts.Command {
	case cmd.CommandList:
		if opts.Interactive {
			return tui.StartDeviceListUI()
		}
		return playback.ListDevices(os.Stdout)
	case cmd.CommandAnalyze:
		return analyze(opts.Args[0], cfg, opts.JSON)
	case cmd.CommandWaveform:
		return preview.RenderFile(opts.Args[0], opts.Args[1], preview.DefaultOptions())
	case cmd.CommandPlay:
		return play(opts)
	}
	return fmt.Errorf("unknown command %q", opts.Command)
}

// configureLogging applies the configured level and format. The terminal
// monitor owns the screen, so its logs go to a file instead.
func configureLogging(cfg *config.Config, toFile bool) (*os.File, error) {
	level, ok := log.ParseLevel(cfg.LogLevel)
	if !ok {
		log.Warnf("Unknown log level %q, using %s", cfg.LogLevel, level)
	}
	log.SetLevel(level)

	if !toFile {
		log.Configure(os.Stderr, cfg.LogFormat)
		return nil, nil
	}
	f, err := os.OpenFile("orbit.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.Configure(f, cfg.LogFormat)
	return f, nil
}

// analyze runs the background worker once and prints the result.
func analyze(path string, cfg *config.Config, asJSON bool) error {
	track, err := decode.Open(path)
	if err != nil {
		return err
	}

	w := worker.New(worker.WithTimeout(cfg.Analysis.Timeout))
	defer w.Close()

	if _, err := w.Submit(track.Samples, track.SampleRate); err != nil {
		return err
	}
	res := <-w.Results()
	if res.Err != nil {
		return fmt.Errorf("analysis of %s failed: %w", track.Name(), res.Err)
	}

	if !asJSON {
		fmt.Printf("%s (%s, %d Hz, %s)\n%s\n", track.Name(), track.Format, track.SampleRate,
			track.Duration().Round(time.Millisecond), res.Descriptors)
		return nil
	}

	out := struct {
		Track       string          `json:"track"`
		Format      string          `json:"format"`
		SampleRate  int             `json:"sample_rate"`
		Seconds     float64         `json:"seconds"`
		Elapsed     string          `json:"elapsed"`
		Descriptors mir.Descriptors `json:"descriptors"`
	}{track.Name(), track.Format, track.SampleRate, track.Duration().Seconds(), res.Elapsed.String(), res.Descriptors}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// trackEvents turns listener callbacks into channels for play.
type trackEvents struct {
	analysed chan struct{}
	failed   chan error
}

func (e *trackEvents) TrackLoaded(string, *decode.Track) {}

func (e *trackEvents) AnalysisComplete(string, mir.Descriptors) {
	select {
	case e.analysed <- struct{}{}:
	default:
	}
}

func (e *trackEvents) AnalysisFailed(_ string, err error) {
	select {
	case e.failed <- err:
	default:
	}
}

func play(opts *cmd.Options) error {
	cfg := opts.Config

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	track, err := decode.Open(opts.Args[0])
	if err != nil {
		return err
	}

	events := &trackEvents{analysed: make(chan struct{}, 1), failed: make(chan error, 1)}
	sessionOpts := []session.Option{session.WithListener(events)}

	var recorder *playback.Recorder
	if opts.Record {
		if recorder, err = playback.NewRecorder(opts.OutputFile, track.SampleRate); err != nil {
			return err
		}
		sessionOpts = append(sessionOpts, session.WithTaps(recorder))
	}

	discardRecording := func() {
		if recorder != nil {
			recorder.Close()
		}
	}

	transports := transport.Multi{transport.NewLoggingTransport()}
	if cfg.Transport.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddr)
		if err != nil {
			discardRecording()
			return err
		}
		transports = append(transports, ws)
	}
	sessionOpts = append(sessionOpts, session.WithTransport(transports))

	s, err := session.New(cfg, sessionOpts...)
	if err != nil {
		transports.Close()
		discardRecording()
		return err
	}

	var publisher *udp.UDPPublisher
	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			s.Close()
			discardRecording()
			return err
		}
		defer sender.Close()
		if publisher, err = udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, s); err != nil {
			s.Close()
			discardRecording()
			return err
		}
		publisher.Start()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Run(ctx)
	}()

	var runErr error
	if _, err := s.LoadTrack(track); err != nil {
		runErr = err
	} else if opts.TUIMode {
		runErr = tui.StartMonitor(s)
	} else {
		runErr = waitForTrack(ctx, s, events)
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	stop()
	wg.Wait()

	if publisher != nil {
		if err := publisher.Stop(); err != nil {
			log.Errorf("Error stopping UDP publisher: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		log.Errorf("Error closing session: %v", err)
	}

	// Stop recording if active and save the file
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			log.Errorf("Error stopping recording: %v", err)
		} else {
			fmt.Printf("\nRecording saved to: %s\n", opts.OutputFile)
		}
	}
	return runErr
}

// waitForTrack blocks until the track has played out, analysis fails or
// the user interrupts.
func waitForTrack(ctx context.Context, s *session.Session, events *trackEvents) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-events.failed:
		return err
	case <-events.analysed:
	}

	select {
	case <-ctx.Done():
		return nil
	case <-s.PlaybackDone():
		log.Infof("Playback finished")
		return nil
	}
}

var _ session.TrackListener = (*trackEvents)(nil)
