package encoder

import (
	"math"
	"testing"
)

func sine(n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.3 * float32(math.Sin(2*math.Pi*220*float64(i)/SampleRate))
	}
	return samples
}

func TestEncodeFLAC(t *testing.T) {
	samples := sine(SampleRate + BlockSize/2) // forces a short final block

	data, err := EncodeFLAC(samples)
	if err != nil {
		t.Fatalf("EncodeFLAC: %v", err)
	}
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}

	rawSize := len(samples) * 2
	if len(data) >= rawSize {
		t.Errorf("FLAC %d bytes not smaller than raw %d bytes", len(data), rawSize)
	}
}

func TestEncodeFLACEmpty(t *testing.T) {
	data, err := EncodeFLAC(nil)
	if err != nil {
		t.Fatalf("EncodeFLAC(nil): %v", err)
	}
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Fatal("empty stream should still carry the FLAC header")
	}
}

func TestFlacEncoderTotalFrames(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	block := make([]int16, BlockSize)
	if err := enc.EncodeBlock(block); err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	if err := enc.EncodeBlock(block[:100]); err != nil {
		t.Fatalf("EncodeBlock short: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := enc.TotalFrames(); got != BlockSize+100 {
		t.Errorf("TotalFrames = %d, want %d", got, BlockSize+100)
	}
}
