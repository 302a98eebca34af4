// Package audio provides input device enumeration and microphone capture.
// All capture is normalized to 16 kHz mono float32, the format
// whisper.cpp consumes directly.
package audio

// SampleRate is the pipeline-wide capture rate. whisper.cpp requires
// 16 kHz input, so the capture layer resamples everything to it.
const SampleRate = 16000

// DataCallback receives normalized samples as they arrive from the host.
type DataCallback func(samples []float32)

// Device is a read-only snapshot of one host input device.
type Device struct {
	ID        string // opaque platform-specific identifier
	Name      string
	IsDefault bool
}

// Context owns the host audio subsystem connection.
type Context interface {
	// Devices lists available capture devices. A host enumeration
	// failure yields an empty list, never an error: device selection
	// is an optional convenience.
	Devices() []Device

	// NewCapture opens a capture device by name. An empty name or
	// "default" selects the host default device.
	NewCapture(deviceName string) (CaptureDevice, error)

	Close()
}

// CaptureDevice is one open capture stream.
type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// DurationMS converts a sample count at SampleRate into milliseconds.
func DurationMS(sampleCount int) int64 {
	return int64(sampleCount) * 1000 / SampleRate
}
