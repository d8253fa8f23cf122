package auth

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackendRoundTrip(t *testing.T) {
	t.Setenv("IGMONITOR_PASSPHRASE", "test-passphrase")

	backend, err := NewFileBackend(filepath.Join(t.TempDir(), "credentials.enc"))
	require.NoError(t, err)

	creds := &Credentials{
		SessionID: "session-abc-123",
		CSRFToken: "csrf-xyz-789",
		UserAgent: "Mozilla/5.0",
	}
	require.NoError(t, backend.Save(creds))

	loaded, err := backend.Load()
	require.NoError(t, err)
	assert.Equal(t, "session-abc-123", loaded.SessionID)
	assert.Equal(t, "csrf-xyz-789", loaded.CSRFToken)
	assert.Equal(t, "Mozilla/5.0", loaded.UserAgent)
}

func TestFileBackendMissingFile(t *testing.T) {
	t.Setenv("IGMONITOR_PASSPHRASE", "test-passphrase")

	backend, err := NewFileBackend(filepath.Join(t.TempDir(), "credentials.enc"))
	require.NoError(t, err)

	_, err = backend.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileBackendWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.enc")

	t.Setenv("IGMONITOR_PASSPHRASE", "first")
	backend, err := NewFileBackend(path)
	require.NoError(t, err)
	require.NoError(t, backend.Save(&Credentials{SessionID: "s", CSRFToken: "c"}))

	t.Setenv("IGMONITOR_PASSPHRASE", "second")
	backend2, err := NewFileBackend(path)
	require.NoError(t, err)

	_, err = backend2.Load()
	assert.Error(t, err)
}

func TestFileBackendClear(t *testing.T) {
	t.Setenv("IGMONITOR_PASSPHRASE", "test-passphrase")

	backend, err := NewFileBackend(filepath.Join(t.TempDir(), "credentials.enc"))
	require.NoError(t, err)
	require.NoError(t, backend.Save(&Credentials{SessionID: "s", CSRFToken: "c"}))

	require.NoError(t, backend.Clear())
	_, err = backend.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, backend.Clear(), ErrNotFound)
}

func TestEnvBackend(t *testing.T) {
	t.Setenv("IGMONITOR_SESSION_ID", "env-session")
	t.Setenv("IGMONITOR_CSRF_TOKEN", "env-csrf")
	t.Setenv("IGMONITOR_USER_AGENT", "env-agent")

	backend := NewEnvBackend()
	creds, err := backend.Load()
	require.NoError(t, err)
	assert.Equal(t, "env-session", creds.SessionID)
	assert.Equal(t, "env-csrf", creds.CSRFToken)
	assert.Equal(t, "env-agent", creds.UserAgent)

	assert.ErrorIs(t, backend.Save(creds), ErrReadOnly)
	assert.ErrorIs(t, backend.Clear(), ErrReadOnly)
}

func TestEnvBackendIncomplete(t *testing.T) {
	t.Setenv("IGMONITOR_SESSION_ID", "env-session")
	t.Setenv("IGMONITOR_CSRF_TOKEN", "")

	_, err := NewEnvBackend().Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChainFallsThroughBackends(t *testing.T) {
	t.Setenv("IGMONITOR_PASSPHRASE", "test-passphrase")
	t.Setenv("IGMONITOR_SESSION_ID", "")
	t.Setenv("IGMONITOR_CSRF_TOKEN", "")

	fileBackend, err := NewFileBackend(filepath.Join(t.TempDir(), "credentials.enc"))
	require.NoError(t, err)
	chain := &Chain{backends: []Backend{fileBackend, NewEnvBackend()}}

	_, err = chain.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, chain.Save(&Credentials{SessionID: "s", CSRFToken: "c"}))

	loaded, err := chain.Load()
	require.NoError(t, err)
	assert.Equal(t, "s", loaded.SessionID)
	assert.False(t, loaded.LastModified.IsZero())
}

func TestChainRejectsIncompleteCredentials(t *testing.T) {
	chain := &Chain{backends: []Backend{NewEnvBackend()}}

	assert.ErrorIs(t, chain.Save(&Credentials{CSRFToken: "c"}), ErrInvalid)
	assert.ErrorIs(t, chain.Save(&Credentials{SessionID: "s"}), ErrInvalid)
}

func TestMaskedCredentials(t *testing.T) {
	creds := &Credentials{SessionID: "1234567890abcdef", CSRFToken: "short"}
	masked := creds.Masked()

	assert.Equal(t, "1234...cdef", masked.SessionID)
	assert.Equal(t, "********", masked.CSRFToken)
	assert.Equal(t, "1234567890abcdef", creds.SessionID)
}
