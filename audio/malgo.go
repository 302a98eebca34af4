package audio

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/DustinWehr/LinWhisper/log"
)

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

// NewContext initializes the host audio subsystem via miniaudio.
func NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo init: %w", err)
	}
	return &malgoContext{ctx: ctx}, nil
}

func (m *malgoContext) Devices() []Device {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		log.Warnf("device enumeration failed: %v", err)
		return nil
	}
	var result []Device
	for _, d := range infos {
		result = append(result, Device{
			ID:        hex.EncodeToString(d.ID[:]),
			Name:      d.Name(),
			IsDefault: d.IsDefault != 0,
		})
	}
	return result
}

func (m *malgoContext) NewCapture(deviceName string) (CaptureDevice, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = SampleRate

	resolvedName := "system default"
	if deviceName != "" && deviceName != "default" {
		dev, ok := m.findDevice(deviceName)
		if !ok {
			return nil, fmt.Errorf("device not found: %s", deviceName)
		}
		idBytes, err := hex.DecodeString(dev.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid device ID: %w", err)
		}
		var devID malgo.DeviceID
		copy(devID[:], idBytes)
		deviceConfig.Capture.DeviceID = devID.Pointer()
		resolvedName = dev.Name
	}

	c := &malgoCapture{name: resolvedName}
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, frameCount uint32) {
			cb := c.callback.Load()
			if cb == nil {
				return
			}
			(*cb)(decodeF32LE(data, frameCount))
		},
	}

	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("malgo device init: %w", err)
	}
	c.device = dev
	return c, nil
}

func (m *malgoContext) findDevice(name string) (Device, bool) {
	for _, d := range m.Devices() {
		if d.Name == name {
			return d, true
		}
	}
	return Device{}, false
}

func (m *malgoContext) Close() {
	m.ctx.Uninit()
	m.ctx.Free()
}

type malgoCapture struct {
	device   *malgo.Device
	name     string
	callback atomic.Pointer[DataCallback]
}

func (c *malgoCapture) Start() error {
	return c.device.Start()
}

func (c *malgoCapture) Stop() {
	c.device.Stop()
}

func (c *malgoCapture) Close() {
	c.device.Uninit()
}

func (c *malgoCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *malgoCapture) ClearCallback() {
	c.callback.Store(nil)
}

func (c *malgoCapture) DeviceName() string {
	return c.name
}

func decodeF32LE(data []byte, frameCount uint32) []float32 {
	n := int(frameCount)
	if max := len(data) / 4; n > max {
		n = max
	}
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}
