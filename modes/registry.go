package modes

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/DustinWehr/LinWhisper/log"
)

var (
	ErrModeNotFound   = errors.New("mode not found")
	ErrImmutableMode  = errors.New("built-in modes cannot be modified")
	ErrModeExists     = errors.New("mode key already exists")
	ErrInvalidModeKey = errors.New("invalid mode key")
)

// validKey restricts keys to names that are safe as filenames: the key
// doubles as the mode file's basename.
func validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

// Registry merges the compiled-in modes with custom modes loaded from a
// directory of JSON documents, one file per mode.
type Registry struct {
	dir string

	mu     sync.RWMutex
	custom map[string]Mode
}

// NewRegistry loads custom modes from dir. The directory is created if
// missing; malformed mode files are skipped with a warning.
func NewRegistry(dir string) (*Registry, error) {
	r := &Registry{dir: dir, custom: make(map[string]Mode)}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create modes directory: %w", err)
	}
	if err := r.Refresh(); err != nil {
		return nil, err
	}
	return r, nil
}

// Refresh re-reads the custom mode directory, replacing the in-memory
// custom set.
func (r *Registry) Refresh() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("read modes directory: %w", err)
	}

	custom := make(map[string]Mode)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("skipping mode file %s: %v", e.Name(), err)
			continue
		}
		var m Mode
		if err := json.Unmarshal(data, &m); err != nil {
			log.Warnf("skipping malformed mode file %s: %v", e.Name(), err)
			continue
		}
		if !validKey(m.Key) {
			log.Warnf("skipping mode file %s: invalid key %q", e.Name(), m.Key)
			continue
		}
		if isBuiltinKey(m.Key) {
			log.Warnf("skipping mode file %s: key %q shadows a built-in mode", e.Name(), m.Key)
			continue
		}
		if _, dup := custom[m.Key]; dup {
			log.Warnf("skipping mode file %s: duplicate key %q", e.Name(), m.Key)
			continue
		}
		m.Builtin = false
		custom[m.Key] = m
	}

	r.mu.Lock()
	r.custom = custom
	r.mu.Unlock()
	return nil
}

// List returns all modes, built-ins first, then custom modes by key.
func (r *Registry) List() []Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Mode, 0, len(builtinModes)+len(r.custom))
	out = append(out, builtinModes...)

	keys := make([]string, 0, len(r.custom))
	for k := range r.custom {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, r.custom[k])
	}
	return out
}

// Get returns the mode with the given key from the merged set.
func (r *Registry) Get(key string) (Mode, error) {
	for _, m := range builtinModes {
		if m.Key == key {
			return m, nil
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.custom[key]; ok {
		return m, nil
	}
	return Mode{}, fmt.Errorf("%w: %s", ErrModeNotFound, key)
}

// GetActive resolves key against the merged set, falling back to the
// default built-in mode if the reference is dangling.
func (r *Registry) GetActive(key string) Mode {
	if m, err := r.Get(key); err == nil {
		return m
	}
	if key != "" {
		log.Warnf("active mode %q not found, falling back to %s", key, DefaultModeKey)
	}
	m, _ := r.Get(DefaultModeKey)
	return m
}

// Create persists a new custom mode. The key must be unique across the
// merged set.
func (r *Registry) Create(m Mode) error {
	if !validKey(m.Key) {
		return fmt.Errorf("%w: %q", ErrInvalidModeKey, m.Key)
	}
	if isBuiltinKey(m.Key) {
		return fmt.Errorf("%w: %s", ErrImmutableMode, m.Key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.custom[m.Key]; exists {
		return fmt.Errorf("%w: %s", ErrModeExists, m.Key)
	}

	m.Builtin = false
	if err := r.write(m); err != nil {
		return err
	}
	r.custom[m.Key] = m
	return nil
}

// Update replaces an existing custom mode in place, keyed by m.Key.
func (r *Registry) Update(m Mode) error {
	if isBuiltinKey(m.Key) {
		return fmt.Errorf("%w: %s", ErrImmutableMode, m.Key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.custom[m.Key]; !exists {
		return fmt.Errorf("%w: %s", ErrModeNotFound, m.Key)
	}

	m.Builtin = false
	if err := r.write(m); err != nil {
		return err
	}
	r.custom[m.Key] = m
	return nil
}

// Delete removes a custom mode and its file. Built-in keys are
// immutable; unknown keys return ErrModeNotFound.
func (r *Registry) Delete(key string) error {
	if isBuiltinKey(key) {
		return fmt.Errorf("%w: %s", ErrImmutableMode, key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.custom[key]; !exists {
		return fmt.Errorf("%w: %s", ErrModeNotFound, key)
	}
	// remove every file claiming this key, not just <key>.json: a
	// hand-renamed file would otherwise resurrect the mode on the next
	// refresh
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("read modes directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var m Mode
		if json.Unmarshal(data, &m) != nil || m.Key != key {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove mode file: %w", err)
		}
	}
	delete(r.custom, key)
	return nil
}

func (r *Registry) write(m Mode) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(r.path(m.Key), data, 0644); err != nil {
		return fmt.Errorf("write mode file: %w", err)
	}
	return nil
}

func (r *Registry) path(key string) string {
	return filepath.Join(r.dir, key+".json")
}

func isBuiltinKey(key string) bool {
	for _, m := range builtinModes {
		if m.Key == key {
			return true
		}
	}
	return false
}
