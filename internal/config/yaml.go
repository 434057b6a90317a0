// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"orbit/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("orbit.yaml", "config.yaml"). If no file is found, it
// uses built-in defaults. After loading defaults or from file, it applies environment
// variable overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{
			"orbit.yaml",
			"config.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate reports the first setting that would make the session unusable.
func (c *Config) Validate() error {
	var errs []error

	if !bitint.IsPowerOfTwo(c.Audio.FFTSize) || c.Audio.FFTSize < MinFFTSize || c.Audio.FFTSize > MaxFFTSize {
		errs = append(errs, fmt.Errorf("audio.fft_size must be a power of 2 in [%d, %d], got %d (nearest above: %d)",
			MinFFTSize, MaxFFTSize, c.Audio.FFTSize, bitint.NextPowerOfTwo(c.Audio.FFTSize)))
	}
	if c.Audio.FramesPerBuffer <= 0 {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer must be positive, got %d", c.Audio.FramesPerBuffer))
	}
	if c.Audio.OutputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio.output_device must be >= %d, got %d", MinDeviceID, c.Audio.OutputDevice))
	}
	if c.Audio.Smoothing < 0 || c.Audio.Smoothing >= 1 {
		errs = append(errs, fmt.Errorf("audio.smoothing must be in [0, 1), got %g", c.Audio.Smoothing))
	}
	if c.Audio.MinDecibels >= c.Audio.MaxDecibels {
		errs = append(errs, fmt.Errorf("audio.min_decibels (%g) must be below audio.max_decibels (%g)",
			c.Audio.MinDecibels, c.Audio.MaxDecibels))
	}

	if c.Render.FPS <= 0 || c.Render.FPS > MaxFPS {
		errs = append(errs, fmt.Errorf("render.fps must be in [1, %d], got %d", MaxFPS, c.Render.FPS))
	}
	if !finite(c.Render.RotationSpeed) {
		errs = append(errs, errors.New("render.rotation_speed must be finite"))
	}
	for _, v := range c.Render.RotationAxis {
		if !finite(v) {
			errs = append(errs, errors.New("render.rotation_axis must be finite"))
			break
		}
	}
	if !finite(c.Render.WhaleScale) || !finite(c.Render.FinScale) {
		errs = append(errs, errors.New("render.whale_scale and render.fin_scale must be finite"))
	}

	if c.Analysis.Timeout < 0 {
		errs = append(errs, fmt.Errorf("analysis.timeout must not be negative, got %s", c.Analysis.Timeout))
	}

	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddr == "" {
		errs = append(errs, errors.New("transport.websocket_addr must be set when the websocket is enabled"))
	}
	if c.Transport.UDPEnabled {
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			errs = append(errs, fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)",
				c.Transport.UDPTargetAddress))
		}
		if c.Transport.UDPSendInterval <= 0 {
			errs = append(errs, errors.New("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}

	return errors.Join(errs...)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// applyEnvOverrides applies ORBIT_* environment variables on top of the
// file or default values. Unparseable values are ignored.
func (c *Config) applyEnvOverrides() {
	// ORBIT_DEBUG
	if val, ok := os.LookupEnv("ORBIT_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
		}
	}
	// ORBIT_LOG_LEVEL
	if val, ok := os.LookupEnv("ORBIT_LOG_LEVEL"); ok && val != "" {
		c.LogLevel = val
	}
	// ORBIT_HEADLESS
	if val, ok := os.LookupEnv("ORBIT_HEADLESS"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Audio.Headless = bVal
		}
	}
	// ORBIT_FPS
	if val, ok := os.LookupEnv("ORBIT_FPS"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			c.Render.FPS = iVal
		}
	}

	// ORBIT_WS_{...} and ORBIT_UDP_{...} are specific to the transport layer.

	if val, ok := os.LookupEnv("ORBIT_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WebSocketEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("ORBIT_WS_ADDR"); ok {
		c.Transport.WebSocketAddr = val
	}
	if val, ok := os.LookupEnv("ORBIT_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("ORBIT_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
	}
	if val, ok := os.LookupEnv("ORBIT_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
		}
	}
}
