package auth

import (
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/goccy/go-json"
)

const (
	keyringService = "igmonitor"
	keyringKey     = "instagram_session"
)

// KeyringBackend stores the credentials in the system keychain.
type KeyringBackend struct{}

// NewKeyringBackend probes the keychain and fails if it is not
// reachable, so the chain can fall through to the file backend.
func NewKeyringBackend() (*KeyringBackend, error) {
	const probe = "availability_probe"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, probe)
	return &KeyringBackend{}, nil
}

func (k *KeyringBackend) Save(creds *Credentials) error {
	if creds == nil || creds.SessionID == "" {
		return ErrInvalid
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := keyring.Set(keyringService, keyringKey, string(data)); err != nil {
		return fmt.Errorf("store in keyring: %w", err)
	}
	return nil
}

func (k *KeyringBackend) Load() (*Credentials, error) {
	data, err := keyring.Get(keyringService, keyringKey)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read from keyring: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal([]byte(data), &creds); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return &creds, nil
}

func (k *KeyringBackend) Clear() error {
	err := keyring.Delete(keyringService, keyringKey)
	if err != nil {
		if err == keyring.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("delete from keyring: %w", err)
	}
	return nil
}
