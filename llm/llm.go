// Package llm rewrites transcripts through a language model. Each mode
// that enables AI processing names a provider and model; the engine
// resolves those to a concrete client and runs a single non-streaming
// completion.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/DustinWehr/LinWhisper/vault"
)

var (
	// ErrProviderUnavailable means the provider cannot be reached or is
	// not a known provider key.
	ErrProviderUnavailable = errors.New("llm provider unavailable")
	// ErrAuthenticationFailed means the provider rejected the stored
	// credential, or no credential is stored.
	ErrAuthenticationFailed = errors.New("llm authentication failed")
	// ErrPostProcessingFailed means the completion itself failed.
	ErrPostProcessingFailed = errors.New("llm post-processing failed")
)

// Provider runs a single prompt to completion and returns the text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// Engine resolves provider keys to clients. Cloud providers read their
// API keys from the vault on every call so key changes take effect
// without a restart. Ollama needs no credential.
type Engine struct {
	vault vault.Vault
}

func NewEngine(v vault.Vault) *Engine {
	return &Engine{vault: v}
}

// Complete resolves provider and runs prompt against model.
func (e *Engine) Complete(ctx context.Context, provider, model, prompt string) (string, error) {
	p, err := e.resolve(provider)
	if err != nil {
		return "", err
	}
	return p.Complete(ctx, prompt, model)
}

func (e *Engine) resolve(provider string) (Provider, error) {
	switch provider {
	case "ollama":
		return NewOllama(""), nil
	case "openai":
		key, err := e.apiKey(provider)
		if err != nil {
			return nil, err
		}
		return NewOpenAI(key), nil
	case "anthropic":
		key, err := e.apiKey(provider)
		if err != nil {
			return nil, err
		}
		return NewAnthropic(key), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrProviderUnavailable, provider)
	}
}

func (e *Engine) apiKey(provider string) (string, error) {
	key, err := e.vault.Get(provider)
	if errors.Is(err, vault.ErrNotFound) {
		return "", fmt.Errorf("%w: no API key stored for %s", ErrAuthenticationFailed, provider)
	}
	if err != nil {
		return "", fmt.Errorf("read API key for %s: %w", provider, err)
	}
	return key, nil
}
