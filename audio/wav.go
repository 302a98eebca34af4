package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// SaveWAV writes samples as a 16 kHz mono 16-bit PCM WAV file, creating
// parent directories as needed.
func SaveWAV(path string, samples []float32) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create audio directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, SampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: SampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(samples)),
	}
	for i, s := range samples {
		buf.Data[i] = int(clampF32(s) * 32767)
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// LoadWAV reads a WAV file and normalizes it to 16 kHz mono float32,
// downmixing and resampling as needed.
func LoadWAV(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	maxVal := float32(int(1) << (bitDepth - 1))

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / maxVal
	}

	if ch := buf.Format.NumChannels; ch > 1 {
		samples = downmix(samples, ch)
	}
	if rate := buf.Format.SampleRate; rate != SampleRate {
		samples = Resample(samples, rate, SampleRate)
	}
	return samples, nil
}

// Resample converts samples between rates using linear interpolation.
// Good enough for speech headed into an STT model.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples)) / ratio)
	resampled := make([]float32, 0, newLen)

	for i := 0; i < newLen; i++ {
		srcIdx := float64(i) * ratio
		idx := int(srcIdx)
		if idx >= len(samples) {
			break
		}
		next := idx + 1
		if next >= len(samples) {
			next = len(samples) - 1
		}
		frac := float32(srcIdx - float64(idx))
		resampled = append(resampled, samples[idx]*(1-frac)+samples[next]*frac)
	}
	return resampled
}

// EncodeWAV renders samples as an in-memory 16 kHz mono 16-bit PCM WAV
// stream, for providers that take a WAV upload body.
func EncodeWAV(samples []float32) []byte {
	dataSize := len(samples) * 2
	buf := make([]byte, 0, 44+dataSize)

	u32 := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b
	}
	u16 := func(v uint16) []byte {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		return b
	}

	buf = append(buf, "RIFF"...)
	buf = append(buf, u32(uint32(36+dataSize))...)
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = append(buf, u32(16)...)                 // fmt chunk size
	buf = append(buf, u16(1)...)                  // PCM
	buf = append(buf, u16(1)...)                  // mono
	buf = append(buf, u32(SampleRate)...)         // sample rate
	buf = append(buf, u32(SampleRate*2)...)       // byte rate
	buf = append(buf, u16(2)...)                  // block align
	buf = append(buf, u16(16)...)                 // bits per sample
	buf = append(buf, "data"...)
	buf = append(buf, u32(uint32(dataSize))...)
	for _, s := range samples {
		buf = append(buf, u16(uint16(int16(clampF32(s)*32767)))...)
	}
	return buf
}

func downmix(samples []float32, channels int) []float32 {
	mono := make([]float32, 0, len(samples)/channels)
	for i := 0; i+channels <= len(samples); i += channels {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i+c]
		}
		mono = append(mono, sum/float32(channels))
	}
	return mono
}

func clampF32(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
