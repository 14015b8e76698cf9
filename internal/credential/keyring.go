// Package credential resolves connector secrets from the system keyring.
package credential

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

// ErrSecretNotFound is returned when no secret is stored for a
// service/username pair.
var ErrSecretNotFound = errors.New("secret not found")

// Store looks up account secrets by service name and username.
type Store interface {
	Secret(service, username string) (string, error)
}

// MailService returns the service name under which mail account secrets
// for server are stored.
func MailService(server string) string {
	return "mail:" + strings.ToLower(strings.TrimSpace(server))
}

// Opener opens the keyring backing one service name.
type Opener func(service string) (keyring.Keyring, error)

// KeyringStore is a Store over the OS keyring. Every service name gets its
// own keyring; items are keyed by username. Safe for concurrent use.
type KeyringStore struct {
	open Opener

	mu    sync.Mutex
	rings map[string]keyring.Keyring
}

// NewKeyringStore returns a store that opens OS keyrings, falling back to
// an encrypted file keyring under fileDir when no keychain is available.
func NewKeyringStore(fileDir string) *KeyringStore {
	return NewKeyringStoreWithOpener(func(service string) (keyring.Keyring, error) {
		return keyring.Open(keyring.Config{
			ServiceName: service,
			AllowedBackends: []keyring.BackendType{
				keyring.KeychainBackend,
				keyring.SecretServiceBackend,
				keyring.WinCredBackend,
				keyring.PassBackend,
				keyring.FileBackend,
			},
			FileDir:                  fileDir,
			FilePasswordFunc:         keyring.FixedStringPrompt("omninexus-file-key"),
			KeychainTrustApplication: true,
		})
	})
}

// NewKeyringStoreWithOpener returns a store using open to obtain keyrings.
func NewKeyringStoreWithOpener(open Opener) *KeyringStore {
	return &KeyringStore{
		open:  open,
		rings: make(map[string]keyring.Keyring),
	}
}

func (s *KeyringStore) ring(service string) (keyring.Keyring, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rings[service]; ok {
		return r, nil
	}
	r, err := s.open(service)
	if err != nil {
		return nil, fmt.Errorf("opening keyring %q: %w", service, err)
	}
	s.rings[service] = r
	return r, nil
}

// Secret retrieves the secret for username under service.
func (s *KeyringStore) Secret(service, username string) (string, error) {
	r, err := s.ring(service)
	if err != nil {
		return "", err
	}

	item, err := r.Get(username)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w for %s@%s", ErrSecretNotFound, username, service)
	}
	if err != nil {
		return "", fmt.Errorf("getting secret for %s@%s: %w", username, service, err)
	}
	if len(item.Data) == 0 {
		return "", fmt.Errorf("%w for %s@%s", ErrSecretNotFound, username, service)
	}

	return string(item.Data), nil
}

// SetSecret stores secret for username under service.
func (s *KeyringStore) SetSecret(service, username, secret string) error {
	r, err := s.ring(service)
	if err != nil {
		return err
	}

	err = r.Set(keyring.Item{
		Key:   username,
		Data:  []byte(secret),
		Label: fmt.Sprintf("%s (%s)", service, username),
	})
	if err != nil {
		return fmt.Errorf("setting secret for %s@%s: %w", username, service, err)
	}

	return nil
}

// DeleteSecret removes the secret for username under service.
func (s *KeyringStore) DeleteSecret(service, username string) error {
	r, err := s.ring(service)
	if err != nil {
		return err
	}

	if err := r.Remove(username); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("%w for %s@%s", ErrSecretNotFound, username, service)
		}
		return fmt.Errorf("deleting secret for %s@%s: %w", username, service, err)
	}

	return nil
}
