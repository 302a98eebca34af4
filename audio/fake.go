package audio

import "sync"

// FakeContext is an in-memory Context for tests. Each capture it opens
// feeds the configured samples to the callback when started.
type FakeContext struct {
	DeviceList []Device
	Samples    []float32
	ChunkSize  int

	mu       sync.Mutex
	captures []*FakeCapture
}

func NewFakeContext(samples []float32) *FakeContext {
	return &FakeContext{
		DeviceList: []Device{{ID: "fake-0", Name: "Fake Microphone", IsDefault: true}},
		Samples:    samples,
		ChunkSize:  1024,
	}
}

func (f *FakeContext) Devices() []Device { return f.DeviceList }

func (f *FakeContext) NewCapture(deviceName string) (CaptureDevice, error) {
	name := deviceName
	if name == "" || name == "default" {
		name = "Fake Microphone"
	}
	c := &FakeCapture{name: name, samples: f.Samples, chunkSize: f.ChunkSize}
	f.mu.Lock()
	f.captures = append(f.captures, c)
	f.mu.Unlock()
	return c, nil
}

func (f *FakeContext) Close() {}

// Captures returns every capture opened so far, for assertions.
func (f *FakeContext) Captures() []*FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeCapture(nil), f.captures...)
}

type FakeCapture struct {
	name      string
	samples   []float32
	chunkSize int

	mu      sync.Mutex
	cb      DataCallback
	started bool
	stopped bool
}

func (c *FakeCapture) Start() error {
	c.mu.Lock()
	cb := c.cb
	c.started = true
	c.mu.Unlock()

	// Feed everything up front; tests drive timing via Push if they
	// need finer control.
	if cb != nil {
		for pos := 0; pos < len(c.samples); pos += c.chunkSize {
			end := min(pos+c.chunkSize, len(c.samples))
			cb(c.samples[pos:end])
		}
	}
	return nil
}

// Push delivers extra samples to the callback mid-recording.
func (c *FakeCapture) Push(samples []float32) {
	c.mu.Lock()
	cb := c.cb
	c.mu.Unlock()
	if cb != nil {
		cb(samples)
	}
}

func (c *FakeCapture) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
}

func (c *FakeCapture) Close() {}

func (c *FakeCapture) SetCallback(cb DataCallback) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

func (c *FakeCapture) ClearCallback() {
	c.mu.Lock()
	c.cb = nil
	c.mu.Unlock()
}

func (c *FakeCapture) DeviceName() string { return c.name }

// Stopped reports whether Stop was called.
func (c *FakeCapture) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}
