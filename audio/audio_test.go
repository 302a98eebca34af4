package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDurationMS(t *testing.T) {
	for _, tt := range []struct {
		samples int
		want    int64
	}{
		{16000, 1000},
		{8000, 500},
		{0, 0},
		{24000, 1500},
	} {
		if got := DurationMS(tt.samples); got != tt.want {
			t.Errorf("DurationMS(%d) = %d, want %d", tt.samples, got, tt.want)
		}
	}
}

func TestResampleSameRate(t *testing.T) {
	samples := []float32{0, 0.5, 1, 0.5, 0}
	got := Resample(samples, 16000, 16000)
	if len(got) != len(samples) {
		t.Errorf("len = %d, want %d", len(got), len(samples))
	}
}

func TestResampleDownsample(t *testing.T) {
	samples := make([]float32, 48000)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(i) / 100))
	}
	got := Resample(samples, 48000, 16000)
	if len(got) > len(samples)/2 || len(got) < len(samples)/4 {
		t.Errorf("resampled length %d out of expected range for 3:1", len(got))
	}
}

func TestWavRoundTrip(t *testing.T) {
	samples := make([]float32, SampleRate/2) // half a second
	for i := range samples {
		samples[i] = 0.5 * float32(math.Sin(2*math.Pi*440*float64(i)/SampleRate))
	}

	path := filepath.Join(t.TempDir(), "audio", "clip.wav")
	if err := SaveWAV(path, samples); err != nil {
		t.Fatalf("SaveWAV: %v", err)
	}

	got, err := LoadWAV(path)
	if err != nil {
		t.Fatalf("LoadWAV: %v", err)
	}
	if len(got) != len(samples) {
		t.Fatalf("loaded %d samples, want %d", len(got), len(samples))
	}
	for i := 0; i < len(samples); i += 1000 {
		if diff := math.Abs(float64(got[i] - samples[i])); diff > 0.001 {
			t.Fatalf("sample %d differs by %f", i, diff)
		}
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	samples := []float32{0, 0.25, -0.25, 1, -1}
	data := EncodeWAV(samples)

	if len(data) != 44+len(samples)*2 {
		t.Fatalf("len = %d, want %d", len(data), 44+len(samples)*2)
	}
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}

	// The in-memory stream must decode like a file written by SaveWAV.
	path := filepath.Join(t.TempDir(), "mem.wav")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadWAV(path)
	if err != nil {
		t.Fatalf("LoadWAV: %v", err)
	}
	if len(got) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(samples))
	}
}

func TestLoadWAVMissing(t *testing.T) {
	if _, err := LoadWAV(filepath.Join(t.TempDir(), "nope.wav")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLevelMeter(t *testing.T) {
	var m LevelMeter

	m.Update([]float32{0, 0, 0, 0})
	level, peak := m.Levels()
	if level != 0 || peak != 0 {
		t.Errorf("silence: level=%f peak=%f, want 0,0", level, peak)
	}

	loud := make([]float32, 100)
	for i := range loud {
		loud[i] = 0.9
	}
	m.Update(loud)
	level, peak = m.Levels()
	if level != 1.0 {
		t.Errorf("loud signal level = %f, want clamped 1.0", level)
	}
	if math.Abs(peak-0.9) > 1e-6 {
		t.Errorf("peak = %f, want 0.9", peak)
	}

	m.Reset()
	if level, peak = m.Levels(); level != 0 || peak != 0 {
		t.Errorf("after Reset: level=%f peak=%f, want 0,0", level, peak)
	}
}

func TestFakeCaptureFeedsSamples(t *testing.T) {
	samples := make([]float32, 3000)
	ctx := NewFakeContext(samples)

	cap, err := ctx.NewCapture("")
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	var received int
	cap.SetCallback(func(s []float32) { received += len(s) })
	if err := cap.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if received != len(samples) {
		t.Errorf("received %d samples, want %d", received, len(samples))
	}
}
