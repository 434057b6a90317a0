// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the scene driver.
const (
	// Audio defaults.
	DefaultOutputDevice    = MinDeviceID // System default output device
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultFFTSize         = 256         // Yields 128 frequency bins
	DefaultSmoothing       = 0.8         // Analyser smoothing time constant
	DefaultMinDecibels     = -100.0
	DefaultMaxDecibels     = -30.0
	DefaultLowLatency      = false

	// Render defaults.
	DefaultFPS           = 60
	DefaultRotationSpeed = 0.01 // Radians per frame
	DefaultWhaleScale    = 1.0
	DefaultFinScale      = 1.0
	DefaultDither        = false

	// Analysis defaults.
	DefaultAnalysisTimeout = 2 * time.Minute

	// Transport defaults.
	DefaultWebSocketAddr   = ":8080"
	DefaultUDPAddress      = "127.0.0.1:9090"
	DefaultUDPSendInterval = 16 * time.Millisecond // ~60Hz

	// Hardware and processing limits.
	MinDeviceID = -1 // -1 represents the system default device
	MinFFTSize  = 32
	MaxFFTSize  = 32768
	MaxFPS      = 240
)

// DefaultRotationAxis is the whale's rotation axis before the user moves it.
var DefaultRotationAxis = [3]float64{0, 1, 0}

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`      // Enable debug mode (verbose logging).
	LogLevel  string          `yaml:"log_level"`  // Logging level (e.g., "debug", "info", "warn", "error").
	LogFormat string          `yaml:"log_format"` // "text" or "json".
	Audio     AudioConfig     `yaml:"audio"`      // Playback and live analyser settings.
	Render    RenderConfig    `yaml:"render"`     // Render loop and initial control values.
	Analysis  AnalysisConfig  `yaml:"analysis"`   // Background MIR extraction settings.
	Transport TransportConfig `yaml:"transport"`  // Frame publishing settings.
}

// AudioConfig holds settings related to playback and the live analyser node.
type AudioConfig struct {
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index for playback (-1 for default).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per PortAudio callback.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from the device.
	Headless        bool    `yaml:"headless"`          // Advance playback on a clock instead of a device.
	FFTSize         int     `yaml:"fft_size"`          // Analyser window; snapshot length is half of it.
	Smoothing       float64 `yaml:"smoothing"`         // Analyser smoothing time constant in [0,1).
	MinDecibels     float64 `yaml:"min_decibels"`      // Level mapped to byte 0.
	MaxDecibels     float64 `yaml:"max_decibels"`      // Level mapped to byte 255.
}

// RenderConfig holds the render loop rate and the initial user controls.
type RenderConfig struct {
	FPS           int        `yaml:"fps"`
	RotationSpeed float64    `yaml:"rotation_speed"`
	RotationAxis  [3]float64 `yaml:"rotation_axis"`
	WhaleScale    float64    `yaml:"whale_scale"`
	FinScale      float64    `yaml:"fin_scale"`
	Dither        bool       `yaml:"dither"`
	PalettePath   string     `yaml:"palette"` // Optional 16x1 PNG for the dither palette.
}

// AnalysisConfig holds settings for the background worker.
type AnalysisConfig struct {
	Timeout time.Duration `yaml:"timeout"` // Upper bound on one extraction, 0 for none.
}

// TransportConfig holds settings related to sending scene frames over the network.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddr    string        `yaml:"websocket_addr"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Audio: AudioConfig{
			OutputDevice:    DefaultOutputDevice,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			FFTSize:         DefaultFFTSize,
			Smoothing:       DefaultSmoothing,
			MinDecibels:     DefaultMinDecibels,
			MaxDecibels:     DefaultMaxDecibels,
		},
		Render: RenderConfig{
			FPS:           DefaultFPS,
			RotationSpeed: DefaultRotationSpeed,
			RotationAxis:  DefaultRotationAxis,
			WhaleScale:    DefaultWhaleScale,
			FinScale:      DefaultFinScale,
			Dither:        DefaultDither,
		},
		Analysis: AnalysisConfig{
			Timeout: DefaultAnalysisTimeout,
		},
		Transport: TransportConfig{
			WebSocketEnabled: false,
			WebSocketAddr:    DefaultWebSocketAddr,
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}

// FrameInterval converts the configured FPS into a ticker period.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Render.FPS)
}
