package vault

import "sync"

// Memory is an in-process Vault used in tests and headless environments
// without a secret service.
type Memory struct {
	mu   sync.RWMutex
	keys map[string]string
}

func NewMemory() *Memory {
	return &Memory{keys: make(map[string]string)}
}

func (m *Memory) Save(provider, key string) error {
	m.mu.Lock()
	m.keys[provider] = key
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(provider string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.keys[provider]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Delete(provider string) error {
	m.mu.Lock()
	delete(m.keys, provider)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Has(provider string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.keys[provider]
	return ok
}
