package config

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

// KeyringService — пространство имён bridge в OS keyring.
const KeyringService = "octane-bridge"

// ErrSecretNotFound — пароль не найден в хранилище.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore — источник паролей Octane.
type SecretStore interface {
	Password(username string) (string, error)
}

// KeyringStore хранит пароли Octane в OS keyring.
type KeyringStore struct {
	ring keyring.Keyring
}

// OpenKeyring открывает OS keyring bridge.
func OpenKeyring() (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              KeyringService,
		KeychainTrustApplication: true,
		LibSecretCollectionName:  KeyringService,
		PassPrefix:               KeyringService,
		WinCredPrefix:            KeyringService,
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

// NewKeyringStore оборачивает уже открытый keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// Password возвращает пароль пользователя.
func (s *KeyringStore) Password(username string) (string, error) {
	item, err := s.ring.Get(username)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, username)
		}
		return "", fmt.Errorf("keyring get: %w", err)
	}
	return string(item.Data), nil
}

// SetPassword сохраняет пароль пользователя.
func (s *KeyringStore) SetPassword(username, password string) error {
	err := s.ring.Set(keyring.Item{
		Key:         username,
		Data:        []byte(password),
		Label:       "Octane password for " + username,
		Description: "octane-bridge server credentials",
	})
	if err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}
