package auth

import (
	"os"
	"time"
)

// EnvBackend reads credentials from environment variables. It never
// writes, container deployments set the variables themselves.
type EnvBackend struct{}

func NewEnvBackend() *EnvBackend {
	return &EnvBackend{}
}

func (e *EnvBackend) Save(creds *Credentials) error {
	return ErrReadOnly
}

func (e *EnvBackend) Load() (*Credentials, error) {
	sessionID := os.Getenv("IGMONITOR_SESSION_ID")
	csrfToken := os.Getenv("IGMONITOR_CSRF_TOKEN")
	if sessionID == "" || csrfToken == "" {
		return nil, ErrNotFound
	}
	return &Credentials{
		SessionID:    sessionID,
		CSRFToken:    csrfToken,
		UserAgent:    os.Getenv("IGMONITOR_USER_AGENT"),
		LastModified: time.Now(),
	}, nil
}

func (e *EnvBackend) Clear() error {
	return ErrReadOnly
}
