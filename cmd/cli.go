// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"time"

	"orbit/internal/config"
	"orbit/pkg/build"

	"github.com/spf13/cobra"
)

// Commands understood by main.
const (
	CommandPlay     = "play"
	CommandAnalyze  = "analyze"
	CommandWaveform = "waveform"
	CommandList     = "list"
)

// Options is the parsed command line.
type Options struct {
	Command string
	Args    []string
	Config  *config.Config

	// play
	TUIMode    bool
	Record     bool
	OutputFile string

	// analyze
	JSON bool

	// list
	Interactive bool
}

// flagValues holds flags that override config values only when set.
type flagValues struct {
	configPath string
	verbose    bool
	logLevel   string
	logFormat  string

	device          int
	framesPerBuffer int
	lowLatency      bool
	headless        bool
	fftSize         int
	smoothing       float64

	fps           int
	rotationSpeed float64
	rotationAxis  []float64
	whaleScale    float64
	finScale      float64
	dither        bool
	palette       string

	timeout time.Duration

	wsAddr  string
	udpAddr string
}

// ParseArgs parses args (without the program name) and loads the
// configuration the chosen command runs with.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.Load()
	options := &Options{}
	flags := &flagValues{}
	var executed *cobra.Command

	record := func(command string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, a []string) error {
			options.Command = command
			options.Args = a
			executed = cmd
			return nil
		}
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "",
		"Path to a YAML config file (default: ./orbit.yaml or ./config.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output (same as --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "",
		"Log format: text or json")

	// Play command
	playCmd := &cobra.Command{
		Use:   "play <track>",
		Short: "Analyse a track, then play it and drive the scene",
		Args:  cobra.ExactArgs(1),
		RunE:  record(CommandPlay),
	}
	pf := playCmd.Flags()
	pf.IntVarP(&flags.device, "device", "d", config.DefaultOutputDevice,
		"Output device ID. Use 'list' command to see available devices.")
	pf.IntVarP(&flags.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency output settings")
	pf.BoolVar(&flags.headless, "headless", false,
		"Advance playback on a clock instead of an audio device")
	pf.IntVar(&flags.fftSize, "fft-size", config.DefaultFFTSize,
		"Analyser FFT size (power of two); the spectrum has half as many bins")
	pf.Float64Var(&flags.smoothing, "smoothing", config.DefaultSmoothing,
		"Analyser smoothing time constant in [0,1)")
	pf.IntVar(&flags.fps, "fps", config.DefaultFPS, "Render loop frames per second")
	pf.Float64Var(&flags.rotationSpeed, "speed", config.DefaultRotationSpeed,
		"Whale rotation speed in radians per frame")
	pf.Float64SliceVar(&flags.rotationAxis, "axis", append([]float64(nil), config.DefaultRotationAxis[:]...),
		"Whale rotation axis as x,y,z")
	pf.Float64Var(&flags.whaleScale, "whale-scale", config.DefaultWhaleScale, "Whale scale multiplier")
	pf.Float64Var(&flags.finScale, "fin-scale", config.DefaultFinScale, "Fin scale multiplier")
	pf.BoolVar(&flags.dither, "dither", config.DefaultDither, "Start with the dither effect on")
	pf.StringVar(&flags.palette, "palette", "", "16x1 PNG dither palette")
	pf.DurationVar(&flags.timeout, "timeout", config.DefaultAnalysisTimeout,
		"Give up on analysis after this long (0 for no limit)")
	pf.StringVar(&flags.wsAddr, "ws", "", "Serve frames over a WebSocket on this address, e.g. :8080")
	pf.StringVar(&flags.udpAddr, "udp", "", "Send binary frames over UDP to this address, e.g. 127.0.0.1:9090")
	pf.BoolVarP(&options.TUIMode, "tui", "t", false, "Show the terminal monitor")
	pf.BoolVarP(&options.Record, "record", "r", false, "Record the played audio to a WAV file")
	pf.StringVarP(&options.OutputFile, "output", "o", "",
		"Recording file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")
	rootCmd.AddCommand(playCmd)

	// Analyze command
	analyzeCmd := &cobra.Command{
		Use:   "analyze <track>",
		Short: "Print the descriptors of a track",
		Args:  cobra.ExactArgs(1),
		RunE:  record(CommandAnalyze),
	}
	analyzeCmd.Flags().BoolVar(&options.JSON, "json", false, "Print descriptors as JSON")
	analyzeCmd.Flags().DurationVar(&flags.timeout, "timeout", config.DefaultAnalysisTimeout,
		"Give up on analysis after this long (0 for no limit)")
	rootCmd.AddCommand(analyzeCmd)

	// Waveform command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "waveform <track> <out.png>",
		Short: "Render a waveform preview image of a track",
		Args:  cobra.ExactArgs(2),
		RunE:  record(CommandWaveform),
	})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available output devices",
		Args:  cobra.NoArgs,
		RunE:  record(CommandList),
	}
	listCmd.Flags().BoolVarP(&options.Interactive, "interactive", "i", false, "Browse devices in a TUI")
	rootCmd.AddCommand(listCmd)

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if executed == nil {
		// --help or --version was handled by cobra.
		return options, nil
	}

	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}
	if err := flags.apply(executed, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	options.Config = cfg

	// Defaults
	if options.Record && options.OutputFile == "" {
		options.OutputFile = "recording-" + time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}

	return options, nil
}

// apply copies every flag the user set onto cfg.
func (f *flagValues) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed

	if f.verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = f.logFormat
	}

	if changed("device") {
		cfg.Audio.OutputDevice = f.device
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = f.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if changed("headless") {
		cfg.Audio.Headless = f.headless
	}
	if changed("fft-size") {
		cfg.Audio.FFTSize = f.fftSize
	}
	if changed("smoothing") {
		cfg.Audio.Smoothing = f.smoothing
	}

	if changed("fps") {
		cfg.Render.FPS = f.fps
	}
	if changed("speed") {
		cfg.Render.RotationSpeed = f.rotationSpeed
	}
	if changed("axis") {
		if len(f.rotationAxis) != 3 {
			return fmt.Errorf("--axis takes three values x,y,z, got %d", len(f.rotationAxis))
		}
		copy(cfg.Render.RotationAxis[:], f.rotationAxis)
	}
	if changed("whale-scale") {
		cfg.Render.WhaleScale = f.whaleScale
	}
	if changed("fin-scale") {
		cfg.Render.FinScale = f.finScale
	}
	if changed("dither") {
		cfg.Render.Dither = f.dither
	}
	if changed("palette") {
		cfg.Render.PalettePath = f.palette
	}

	if changed("timeout") {
		cfg.Analysis.Timeout = f.timeout
	}

	if changed("ws") {
		cfg.Transport.WebSocketEnabled = true
		cfg.Transport.WebSocketAddr = f.wsAddr
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = true
		cfg.Transport.UDPTargetAddress = f.udpAddr
	}
	return nil
}
