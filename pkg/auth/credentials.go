// Package auth stores the Instagram session the monitor checks with.
// Credentials resolve through a chain of backends: system keychain,
// encrypted file, environment variables.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Credentials holds the session cookie pair the Instagram web API
// expects, plus the user agent it was issued under.
type Credentials struct {
	SessionID    string    `json:"session_id"`
	CSRFToken    string    `json:"csrf_token"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Backend is a single credential storage mechanism.
type Backend interface {
	Save(creds *Credentials) error
	Load() (*Credentials, error)
	Clear() error
}

var (
	ErrNotFound    = errors.New("credentials not found")
	ErrInvalid     = errors.New("invalid credentials")
	ErrReadOnly    = errors.New("credential backend is read-only")
	ErrUnavailable = errors.New("credential backend unavailable")
)

// Chain tries each backend in order. Saves go to the first backend
// that accepts them, loads return the first hit.
type Chain struct {
	backends []Backend
}

// NewChain builds the default backend chain. The keyring is skipped
// when the system keychain is not reachable.
func NewChain() (*Chain, error) {
	var backends []Backend

	if ks, err := NewKeyringBackend(); err == nil {
		backends = append(backends, ks)
	}

	dir, err := configDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config directory: %w", err)
	}
	fs, err := NewFileBackend(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("create encrypted store: %w", err)
	}
	backends = append(backends, fs)
	backends = append(backends, NewEnvBackend())

	return &Chain{backends: backends}, nil
}

// Save validates and stores the credentials in the first writable
// backend.
func (c *Chain) Save(creds *Credentials) error {
	if creds == nil || creds.SessionID == "" {
		return fmt.Errorf("%w: session ID is required", ErrInvalid)
	}
	if creds.CSRFToken == "" {
		return fmt.Errorf("%w: CSRF token is required", ErrInvalid)
	}
	creds.LastModified = time.Now()

	var lastErr error
	for _, b := range c.backends {
		if err := b.Save(creds); err == nil {
			return nil
		} else if !errors.Is(err, ErrReadOnly) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("save credentials: %w", lastErr)
	}
	return ErrUnavailable
}

// Load returns the credentials from the first backend that has them.
func (c *Chain) Load() (*Credentials, error) {
	for _, b := range c.backends {
		if creds, err := b.Load(); err == nil && creds != nil {
			return creds, nil
		}
	}
	return nil, ErrNotFound
}

// Clear removes the credentials from every backend that holds them.
func (c *Chain) Clear() error {
	var cleared bool
	for _, b := range c.backends {
		if err := b.Clear(); err == nil {
			cleared = true
		}
	}
	if !cleared {
		return ErrNotFound
	}
	return nil
}

// Masked returns a copy safe for logging.
func (creds *Credentials) Masked() *Credentials {
	if creds == nil {
		return nil
	}
	return &Credentials{
		SessionID:    maskString(creds.SessionID),
		CSRFToken:    maskString(creds.CSRFToken),
		UserAgent:    creds.UserAgent,
		LastModified: creds.LastModified,
	}
}

func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func configDir() (string, error) {
	var dir string
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", "igmonitor")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), "igmonitor")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "igmonitor")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config", "igmonitor")
		}
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return dir, nil
}
