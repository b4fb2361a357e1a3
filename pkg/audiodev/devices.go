package audiodev

import (
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// DeviceInfo describes one PortAudio device.
type DeviceInfo struct {
	ID                int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	DefaultInput      bool
	DefaultOutput     bool
}

func (d DeviceInfo) IsInput() bool  { return d.MaxInputChannels > 0 }
func (d DeviceInfo) IsOutput() bool { return d.MaxOutputChannels > 0 }

// Capabilities is a short "Input, Output" style summary.
func (d DeviceInfo) Capabilities() string {
	var caps []string
	if d.IsInput() {
		caps = append(caps, "Input")
	}
	if d.IsOutput() {
		caps = append(caps, "Output")
	}
	if len(caps) == 0 {
		return "None"
	}
	return strings.Join(caps, ", ")
}

// ListDevices enumerates the devices PortAudio can see. It initializes and
// terminates PortAudio itself, so it must not be called while a Device is
// open on platforms that do not reference-count initialization.
func ListDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()
	return listDevices()
}

// ValidateInput checks that the default input can record the requested
// channel count.
func ValidateInput(devices []DeviceInfo, channels int) error {
	for _, d := range devices {
		if !d.DefaultInput {
			continue
		}
		if d.MaxInputChannels < channels {
			return fmt.Errorf("device '%s' supports max %d input channels, requested %d",
				d.Name, d.MaxInputChannels, channels)
		}
		return nil
	}
	return fmt.Errorf("no default input device found")
}

func listDevices() ([]DeviceInfo, error) {
	defaultInput, _ := portaudio.DefaultInputDevice()
	defaultOutput, _ := portaudio.DefaultOutputDevice()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	out := make([]DeviceInfo, 0, len(devices))
	for i, dev := range devices {
		hostAPI := "Unknown"
		if dev.HostApi != nil {
			hostAPI = dev.HostApi.Name
		}
		out = append(out, DeviceInfo{
			ID:                i,
			Name:              dev.Name,
			HostAPI:           hostAPI,
			MaxInputChannels:  dev.MaxInputChannels,
			MaxOutputChannels: dev.MaxOutputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			DefaultInput:      defaultInput != nil && dev == defaultInput,
			DefaultOutput:     defaultOutput != nil && dev == defaultOutput,
		})
	}
	return out, nil
}
