package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/paneld-dev/paneld/internal/transport"
)

const (
	service = "paneld-cli"
)

// getKeyringKey returns a unique key for storing the session per backend
func getKeyringKey(baseURL string) string {
	return fmt.Sprintf("session-%s", baseURL)
}

// KeyringStore persists the session credential in the OS keychain/credential
// manager. It implements transport.CredentialStore.
type KeyringStore struct {
	key string
}

var _ transport.CredentialStore = (*KeyringStore)(nil)

// NewKeyringStore creates a store scoped to one backend base URL
func NewKeyringStore(baseURL string) *KeyringStore {
	return &KeyringStore{key: getKeyringKey(baseURL)}
}

// Load retrieves the credential; (nil, nil) means not logged in
func (k *KeyringStore) Load() (*transport.Credential, error) {
	data, err := keyring.Get(service, k.key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var cred transport.Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("failed to decode stored session: %w", err)
	}
	return &cred, nil
}

// Save persists the credential securely
func (k *KeyringStore) Save(cred *transport.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := keyring.Set(service, k.key, string(data)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear removes the credential
func (k *KeyringStore) Clear() error {
	if err := keyring.Delete(service, k.key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
