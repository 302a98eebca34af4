// Package stt turns recorded audio into text through a pluggable
// provider: a local whisper.cpp model or a cloud transcription API.
package stt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/DustinWehr/LinWhisper/vault"
)

var (
	// ErrProviderUnavailable means the model is not downloaded or the
	// provider cannot be reached. Recoverable by user action.
	ErrProviderUnavailable = errors.New("transcription provider unavailable")
	// ErrAuthenticationFailed means the API key is missing or rejected.
	ErrAuthenticationFailed = errors.New("transcription authentication failed")
	// ErrTranscriptionFailed is a provider-reported decode error.
	ErrTranscriptionFailed = errors.New("transcription failed")
)

// Provider is the STT capability: mono 16 kHz float32 samples in,
// transcript text out.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, samples []float32, model, language string) (string, error)
}

// Engine resolves a provider id into one of the known provider
// implementations and keeps local models warm across calls.
type Engine struct {
	vault     vault.Vault
	modelsDir string

	mu     sync.Mutex
	models map[string]*WhisperCpp // loaded local models keyed by model id
}

// NewEngine creates an engine. modelsDir holds local whisper models as
// ggml-<name>.bin files.
func NewEngine(v vault.Vault, modelsDir string) *Engine {
	return &Engine{
		vault:     v,
		modelsDir: modelsDir,
		models:    make(map[string]*WhisperCpp),
	}
}

// Transcribe runs one transcription through the named provider.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, providerID, model, language string) (string, error) {
	p, err := e.resolve(providerID, model)
	if err != nil {
		return "", err
	}
	return p.Transcribe(ctx, samples, model, language)
}

// resolve maps a provider id to an implementation, once per call. The
// provider set is closed; unknown ids fail rather than falling through
// to string-keyed dispatch at call sites.
func (e *Engine) resolve(providerID, model string) (Provider, error) {
	switch providerID {
	case "whispercpp":
		return e.localModel(model)
	case "openai":
		key, err := e.apiKey("openai")
		if err != nil {
			return nil, err
		}
		return NewOpenAI(key), nil
	case "groq":
		key, err := e.apiKey("groq")
		if err != nil {
			return nil, err
		}
		return NewGroq(key), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrProviderUnavailable, providerID)
	}
}

// localModel returns the cached whisper.cpp instance for a model id,
// loading it on first use.
func (e *Engine) localModel(model string) (*WhisperCpp, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if w, ok := e.models[model]; ok {
		return w, nil
	}
	w, err := LoadWhisperCpp(e.modelsDir, model)
	if err != nil {
		return nil, err
	}
	e.models[model] = w
	return w, nil
}

// Close releases all loaded local models.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, w := range e.models {
		w.Close()
		delete(e.models, id)
	}
}

func (e *Engine) apiKey(provider string) (string, error) {
	key, err := e.vault.Get(provider)
	if err != nil {
		if errors.Is(err, vault.ErrNotFound) {
			return "", fmt.Errorf("%w: no API key for %s", ErrAuthenticationFailed, provider)
		}
		return "", fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	return key, nil
}
