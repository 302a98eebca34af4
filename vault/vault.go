// Package vault stores provider API keys in the OS secret store.
// Key values never appear in logs, history records, or exports.
package vault

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// service namespaces our entries inside the OS keyring.
const service = "linwhisper"

// ErrNotFound is returned by Get when no key is stored for a provider.
var ErrNotFound = errors.New("no API key stored for provider")

// Vault stores one API key per provider name.
type Vault interface {
	// Save overwrites any existing key for the provider.
	Save(provider, key string) error
	// Get returns the stored key or ErrNotFound.
	Get(provider string) (string, error)
	// Delete removes the key. Absence is not an error.
	Delete(provider string) error
	// Has reports presence without exposing the key value.
	Has(provider string) bool
}

// Keyring is the OS-backed Vault (Secret Service on Linux, Keychain on
// macOS, Credential Manager on Windows).
type Keyring struct{}

func NewKeyring() *Keyring { return &Keyring{} }

func (k *Keyring) Save(provider, key string) error {
	if err := keyring.Set(service, provider, key); err != nil {
		return fmt.Errorf("keyring save for %s: %w", provider, err)
	}
	return nil
}

func (k *Keyring) Get(provider string) (string, error) {
	v, err := keyring.Get(service, provider)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("keyring get for %s: %w", provider, err)
	}
	return v, nil
}

func (k *Keyring) Delete(provider string) error {
	err := keyring.Delete(service, provider)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete for %s: %w", provider, err)
	}
	return nil
}

func (k *Keyring) Has(provider string) bool {
	_, err := keyring.Get(service, provider)
	return err == nil
}
