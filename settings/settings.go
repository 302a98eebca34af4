// Package settings persists process-wide configuration as a single JSON
// document: loaded once at startup, held in memory, written back on
// explicit save.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Settings is the full configuration document.
type Settings struct {
	STTProvider      string `json:"stt_provider"`
	STTModel         string `json:"stt_model"`
	LLMProvider      string `json:"llm_provider"`
	LLMModel         string `json:"llm_model"`
	ActiveModeKey    string `json:"active_mode_key"`
	InputDevice      string `json:"input_device"`
	AutoPaste        bool   `json:"auto_paste"`
	ContextAwareness bool   `json:"context_awareness"`
	Language         string `json:"language"`
}

// Defaults returns baseline configuration for first launch.
func Defaults() Settings {
	return Settings{
		STTProvider:   "whispercpp",
		STTModel:      "base.en",
		LLMProvider:   "ollama",
		LLMModel:      "llama3.2",
		ActiveModeKey: "voice_to_text",
		InputDevice:   "default",
		AutoPaste:     true,
		Language:      "en",
	}
}

// Store holds the in-memory settings snapshot and its backing file.
// Get returns a copy, so an in-flight recording cycle keeps observing
// the snapshot it started with even if settings change mid-cycle.
type Store struct {
	path string

	mu      sync.RWMutex
	current Settings
}

// NewStore loads settings from path, falling back to defaults when the
// file does not exist yet.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.current = Defaults()
			return s, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Settings
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	s.current = cfg
	return s, nil
}

// Get returns the current settings snapshot.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update replaces the in-memory value atomically and persists it.
func (s *Store) Update(cfg Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()
	return nil
}
