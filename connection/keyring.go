package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

// KeyringStore keeps connections in the system keyring, one item per user.
type KeyringStore struct {
	ring keyring.Keyring
}

// OpenKeyringStore opens the system keyring under the given service name.
// The file backend is used when no system keyring is available.
func OpenKeyringStore(serviceName, fileDir string, passphrase []byte) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(string(passphrase)),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}

	return NewKeyringStore(ring), nil
}

func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

func (s *KeyringStore) FindConnection(_ context.Context, userID string) (Connection, bool, error) {
	item, err := s.ring.Get(userID)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return Connection{}, false, nil
		}

		return Connection{}, false, fmt.Errorf("getting connection %q: %w", userID, err)
	}

	var conn Connection

	if err := json.Unmarshal(item.Data, &conn); err != nil {
		return Connection{}, false, fmt.Errorf("decoding connection %q: %w", userID, err)
	}

	return conn, true, nil
}

func (s *KeyringStore) SaveConnection(_ context.Context, conn Connection) error {
	data, err := json.Marshal(conn)
	if err != nil {
		return err
	}

	if err := s.ring.Set(keyring.Item{
		Key:   conn.UserID,
		Data:  data,
		Label: "courier " + conn.ProviderID,
	}); err != nil {
		return fmt.Errorf("setting connection %q: %w", conn.UserID, err)
	}

	return nil
}

func (s *KeyringStore) DeleteConnection(_ context.Context, userID string) error {
	if err := s.ring.Remove(userID); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting connection %q: %w", userID, err)
	}

	return nil
}

func (s *KeyringStore) Close() error {
	return nil
}
