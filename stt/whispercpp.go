package stt

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/DustinWehr/LinWhisper/log"
)

// WhisperCpp runs transcription against a locally loaded whisper.cpp
// model. Loading is expensive, so instances are cached by the engine
// and kept warm across cycles.
type WhisperCpp struct {
	model whisper.Model
	name  string

	// Serializes inference: one transcription per loaded model at a
	// time. Overlapping requests queue rather than corrupt model state.
	mu sync.Mutex
}

// ModelPath returns where a model id lives on disk.
func ModelPath(modelsDir, model string) string {
	return filepath.Join(modelsDir, fmt.Sprintf("ggml-%s.bin", model))
}

// LoadWhisperCpp loads a model file. A missing file is
// ErrProviderUnavailable: the user needs to download the model first.
func LoadWhisperCpp(modelsDir, model string) (*WhisperCpp, error) {
	path := ModelPath(modelsDir, model)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: model %s not found at %s", ErrProviderUnavailable, model, path)
	}

	log.Infof("loading whisper model %s", path)
	m, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: load model %s: %v", ErrProviderUnavailable, model, err)
	}
	log.Infof("whisper model %s loaded (multilingual=%v)", model, m.IsMultilingual())
	return &WhisperCpp{model: m, name: model}, nil
}

func (w *WhisperCpp) Name() string { return "whispercpp" }

func (w *WhisperCpp) Transcribe(ctx context.Context, samples []float32, _ string, language string) (string, error) {
	done := make(chan struct{})
	var text string
	var inferErr error

	go func() {
		defer close(done)
		w.mu.Lock()
		defer w.mu.Unlock()
		text, inferErr = w.run(samples, language)
	}()

	select {
	case <-done:
		return text, inferErr
	case <-ctx.Done():
		// Inference cannot be interrupted mid-flight; the goroutine
		// finishes on its own and releases the model lock.
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, ctx.Err())
	}
}

func (w *WhisperCpp) run(samples []float32, language string) (string, error) {
	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("%w: create context: %v", ErrTranscriptionFailed, err)
	}

	if language == "" {
		language = "en"
	}
	if w.model.IsMultilingual() || strings.HasPrefix(language, "en") {
		if err := wctx.SetLanguage(language); err != nil {
			log.Warnf("whisper: cannot set language %q: %v", language, err)
		}
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}

	var sb strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: read segment: %v", ErrTranscriptionFailed, err)
		}
		sb.WriteString(segment.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}

// Close releases the loaded model.
func (w *WhisperCpp) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model != nil {
		w.model.Close()
		w.model = nil
	}
}
