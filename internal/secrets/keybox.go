package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
)

// ErrInvalidKeyFile is returned when the key file exists but does not hold a
// valid AES-256 key.
var ErrInvalidKeyFile = errors.New("invalid encryption key file")

// Keybox provides at-rest encryption for the private key stored in the
// configuration. The symmetric key lives in a separate key file that is
// generated on first use.
type Keybox struct {
	path string
}

// NewKeybox creates a Keybox backed by the key file at path.
func NewKeybox(path string) *Keybox {
	return &Keybox{path: path}
}

// loadOrCreateKey reads the key file, generating a fresh key when absent.
func (k *Keybox) loadOrCreateKey() ([]byte, error) {
	data, err := os.ReadFile(k.path)
	if err == nil {
		if len(data) != 32 {
			return nil, ErrInvalidKeyFile
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	if err := os.WriteFile(k.path, key, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext with AES-256-GCM and returns it base64 encoded.
func (k *Keybox) Encrypt(plaintext []byte) (string, error) {
	key, err := k.loadOrCreateKey()
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a base64 encoded ciphertext produced by Encrypt. A missing
// key file is an error here: there is nothing the ciphertext could have been
// sealed with.
func (k *Keybox) Decrypt(encrypted string) ([]byte, error) {
	data, err := os.ReadFile(k.path)
	if err != nil {
		return nil, fmt.Errorf("no encryption key found: %w", err)
	}
	if len(data) != 32 {
		return nil, ErrInvalidKeyFile
	}

	sealed, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("malformed ciphertext: %w", err)
	}

	block, err := aes.NewCipher(data)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("malformed ciphertext: too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}
