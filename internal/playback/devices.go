// SPDX-License-Identifier: MIT
package playback

import (
	"fmt"
	"io"

	"orbit/internal/config"

	"github.com/gordonklaus/portaudio"
)

// PortAudio entry points, swappable in tests.
var (
	paLibInitialize              = portaudio.Initialize
	paLibTerminate               = portaudio.Terminate
	paLibDevicesFunc             = portaudio.Devices
	paLibDefaultOutputDeviceFunc = portaudio.DefaultOutputDevice
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any device playback and paired with a Terminate() call.
func Initialize() error {
	if err := paLibInitialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := paLibTerminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// DeviceInfo describes one host audio device.
type DeviceInfo struct {
	ID                int
	Name              string
	MaxOutputChannels int
	DefaultSampleRate float64
	LowLatencyMs      float64
	HighLatencyMs     float64
}

// HostDevices returns the devices PortAudio reports, output-capable or not.
func HostDevices() ([]DeviceInfo, error) {
	infos, err := paDevices()
	if err != nil {
		return nil, err
	}
	devices := make([]DeviceInfo, len(infos))
	for i, info := range infos {
		devices[i] = DeviceInfo{
			ID:                i,
			Name:              info.Name,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			LowLatencyMs:      info.DefaultLowOutputLatency.Seconds() * 1000,
			HighLatencyMs:     info.DefaultHighOutputLatency.Seconds() * 1000,
		}
	}
	return devices, nil
}

// OutputDevice retrieves the output device for the given device ID.
// If deviceID is MinDeviceID (-1), returns the system default output device.
func OutputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID == config.MinDeviceID {
		return paLibDefaultOutputDeviceFunc()
	}

	devices, err := paDevices()
	if err != nil {
		return nil, err
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	if devices[deviceID].MaxOutputChannels < 1 {
		return nil, fmt.Errorf("device %d (%s) does not support output", deviceID, devices[deviceID].Name)
	}
	return devices[deviceID], nil
}

// ListDevices writes the output-capable devices to w.
func ListDevices(w io.Writer) error {
	devices, err := HostDevices()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Output Devices\n\n")
	for _, d := range devices {
		if d.MaxOutputChannels < 1 {
			continue
		}
		fmt.Fprintf(w, "[%d] %s\n", d.ID, d.Name)
		fmt.Fprintf(w, "    Output channels: %d\n", d.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", d.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: Low=%.2fms, High=%.2fms\n", d.LowLatencyMs, d.HighLatencyMs)
		fmt.Fprintln(w)
	}
	return nil
}

// paDevices returns all available PortAudio devices, never nil.
func paDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := paLibDevicesFunc()
	if err != nil {
		return nil, err
	}
	if devices == nil {
		devices = []*portaudio.DeviceInfo{}
	}
	return devices, nil
}
