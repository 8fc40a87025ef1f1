package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const secretsFileName = "secrets.enc"

// EncryptedProvider keeps secrets in a single AES-256-GCM encrypted file
// under the configured data directory. The full set is held in memory and
// rewritten atomically on every mutation.
type EncryptedProvider struct {
	aead    cipher.AEAD
	dataDir string

	mu      sync.RWMutex
	entries map[string]string
}

// NewEncryptedProvider opens (or initializes) the encrypted store. The key
// must be a base64-encoded 32-byte value, see GenerateKey.
func NewEncryptedProvider(encryptionKey, dataDir string) (*EncryptedProvider, error) {
	aead, err := newAEAD(encryptionKey)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create secrets directory: %w", err)
	}

	p := &EncryptedProvider{
		aead:    aead,
		dataDir: dataDir,
		entries: make(map[string]string),
	}

	if err := p.load(); err != nil {
		return nil, fmt.Errorf("failed to load secrets cache: %w", err)
	}
	return p, nil
}

func newAEAD(encryptionKey string) (cipher.AEAD, error) {
	if encryptionKey == "" {
		return nil, fmt.Errorf("%w: encryption key is required", ErrInvalidKey)
	}
	key, err := base64.StdEncoding.DecodeString(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode encryption key: %v", ErrInvalidKey, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: encryption key must be 32 bytes (256 bits), got %d", ErrInvalidKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Get retrieves a secret by key
func (p *EncryptedProvider) Get(ctx context.Context, key string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	value, ok := p.entries[key]
	if !ok {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// Set stores a secret
func (p *EncryptedProvider) Set(ctx context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries[key] = value
	return p.persist()
}

// Delete removes a secret
func (p *EncryptedProvider) Delete(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[key]; !ok {
		return ErrSecretNotFound
	}

	delete(p.entries, key)
	return p.persist()
}

// Name returns the provider name
func (p *EncryptedProvider) Name() string {
	return "encrypted"
}

func (p *EncryptedProvider) path() string {
	return filepath.Join(p.dataDir, secretsFileName)
}

func (p *EncryptedProvider) load() error {
	sealed, err := os.ReadFile(p.path())
	if errors.Is(err, os.ErrNotExist) {
		// First run, nothing stored yet
		return nil
	}
	if err != nil {
		return err
	}

	plaintext, err := p.open(sealed)
	if err != nil {
		return fmt.Errorf("failed to decrypt secrets: %w", err)
	}
	if err := json.Unmarshal(plaintext, &p.entries); err != nil {
		return fmt.Errorf("failed to parse secrets: %w", err)
	}
	return nil
}

// persist writes the entry set to disk via a temp file and rename so a
// crash mid-write never leaves a truncated secrets file behind.
func (p *EncryptedProvider) persist() error {
	plaintext, err := json.Marshal(p.entries)
	if err != nil {
		return fmt.Errorf("failed to serialize secrets: %w", err)
	}

	sealed, err := p.seal(plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt secrets: %w", err)
	}

	tmp := p.path() + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	if err := os.Rename(tmp, p.path()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename secrets file: %w", err)
	}
	return nil
}

// seal encrypts plaintext and prepends the nonce to the result.
func (p *EncryptedProvider) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return p.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (p *EncryptedProvider) open(sealed []byte) ([]byte, error) {
	nonceSize := p.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	return p.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
}

// GenerateKey generates a new 256-bit encryption key encoded as base64
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
