package audio

import (
	"math"
	"sync"
)

// LevelMeter tracks the current RMS level and peak of a capture stream.
// Values are normalized to [0.0, 1.0] for UI feedback.
type LevelMeter struct {
	mu    sync.Mutex
	level float64
	peak  float64
}

// Update recomputes level and peak from a block of samples.
func (m *LevelMeter) Update(samples []float32) {
	if len(samples) == 0 {
		return
	}

	var sumSq float64
	peak := 0.0
	for _, s := range samples {
		f := float64(s)
		sumSq += f * f
		if a := math.Abs(f); a > peak {
			peak = a
		}
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))

	// Typical speech sits around 0.1-0.3 RMS; scale so it fills the meter.
	level := math.Min(rms*3.0, 1.0)

	m.mu.Lock()
	m.level = level
	m.peak = math.Min(peak, 1.0)
	m.mu.Unlock()
}

// Levels returns the most recent level and peak.
func (m *LevelMeter) Levels() (level, peak float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level, m.peak
}

// Reset clears the meter between recordings.
func (m *LevelMeter) Reset() {
	m.mu.Lock()
	m.level = 0
	m.peak = 0
	m.mu.Unlock()
}
