package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/goccy/go-json"
)

const (
	saltSize       = 32
	keySize        = 32
	kdfIterations  = 100000
	passphraseFile = ".passphrase"
)

// FileBackend stores credentials in a single AES-GCM encrypted file.
// The key derives from a passphrase held next to the file or in the
// IGMONITOR_PASSPHRASE environment variable.
type FileBackend struct {
	path       string
	passphrase string
	mu         sync.Mutex
}

type encryptedFile struct {
	Salt      string    `json:"salt"`
	Encrypted string    `json:"encrypted"`
	Version   int       `json:"version"`
	Modified  time.Time `json:"modified"`
}

// NewFileBackend creates an encrypted file store at path.
func NewFileBackend(path string) (*FileBackend, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}
	b := &FileBackend{path: path}
	pass, err := b.resolvePassphrase()
	if err != nil {
		return nil, fmt.Errorf("resolve passphrase: %w", err)
	}
	b.passphrase = pass
	return b, nil
}

func (b *FileBackend) Save(creds *Credentials) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if creds == nil || creds.SessionID == "" {
		return ErrInvalid
	}

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(b.passphrase), salt, kdfIterations, keySize, sha256.New)

	sealed, err := encrypt(plaintext, key)
	if err != nil {
		return fmt.Errorf("encrypt credentials: %w", err)
	}

	content, err := json.MarshalIndent(encryptedFile{
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Encrypted: base64.StdEncoding.EncodeToString(sealed),
		Version:   1,
		Modified:  time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal file: %w", err)
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return os.Rename(tmp, b.path)
}

func (b *FileBackend) Load() (*Credentials, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	content, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read file: %w", err)
	}

	var file encryptedFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("parse file: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(file.Encrypted)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	key := pbkdf2.Key([]byte(b.passphrase), salt, kdfIterations, keySize, sha256.New)
	plaintext, err := decrypt(sealed, key)
	if err != nil {
		return nil, fmt.Errorf("decrypt credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return &creds, nil
}

func (b *FileBackend) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(b.path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func (b *FileBackend) resolvePassphrase() (string, error) {
	if pass := os.Getenv("IGMONITOR_PASSPHRASE"); pass != "" {
		return pass, nil
	}

	passPath := filepath.Join(filepath.Dir(b.path), passphraseFile)
	if content, err := os.ReadFile(passPath); err == nil && len(content) > 0 {
		return string(content), nil
	}

	pass := generatePassphrase()
	if err := os.WriteFile(passPath, []byte(pass), 0600); err != nil {
		return "", fmt.Errorf("save passphrase: %w", err)
	}
	return pass, nil
}

func generatePassphrase() string {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(raw)
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}
