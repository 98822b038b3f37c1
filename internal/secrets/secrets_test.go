package secrets

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyboxRoundTrip(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "secret.key")
	kb := NewKeybox(keyFile)

	secret := []byte("the quick brown fox")
	encrypted, err := kb.Encrypt(secret)
	assert.NoError(t, err)
	assert.NotEqual(t, string(secret), encrypted)

	// The key file was generated as a side effect of the first Encrypt.
	data, err := os.ReadFile(keyFile)
	assert.NoError(t, err)
	assert.Len(t, data, 32)

	decrypted, err := kb.Decrypt(encrypted)
	assert.NoError(t, err)
	assert.Equal(t, secret, decrypted)
}

func TestKeyboxEncryptIsNonDeterministic(t *testing.T) {
	kb := NewKeybox(filepath.Join(t.TempDir(), "secret.key"))

	a, err := kb.Encrypt([]byte("same plaintext"))
	assert.NoError(t, err)
	b, err := kb.Encrypt([]byte("same plaintext"))
	assert.NoError(t, err)
	assert.NotEqual(t, a, b, "fresh nonce per encryption")
}

func TestKeyboxDecryptWithoutKeyFile(t *testing.T) {
	kb := NewKeybox(filepath.Join(t.TempDir(), "secret.key"))
	_, err := kb.Decrypt("d2hhdGV2ZXI=")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no encryption key found")
}

func TestKeyboxRejectsInvalidKeyFile(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "secret.key")
	assert.NoError(t, os.WriteFile(keyFile, []byte("too short"), 0o600))

	kb := NewKeybox(keyFile)

	_, err := kb.Encrypt([]byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKeyFile)

	_, err = kb.Decrypt("d2hhdGV2ZXI=")
	assert.ErrorIs(t, err, ErrInvalidKeyFile)
}

func TestKeyboxRejectsTamperedCiphertext(t *testing.T) {
	kb := NewKeybox(filepath.Join(t.TempDir(), "secret.key"))

	encrypted, err := kb.Encrypt([]byte("payload"))
	assert.NoError(t, err)

	flipped := byte('A')
	if encrypted[0] == flipped {
		flipped = 'B'
	}
	tampered := string(flipped) + encrypted[1:]
	_, err = kb.Decrypt(tampered)
	assert.Error(t, err)
}

func TestIdentityFromSeedRoundTrip(t *testing.T) {
	id, err := GenerateIdentity()
	assert.NoError(t, err)

	restored, err := IdentityFromSeed(id.Seed())
	assert.NoError(t, err)
	assert.Equal(t, id.Address(), restored.Address())
}

func TestIdentityRejectsBadSeed(t *testing.T) {
	_, err := IdentityFromSeed([]byte("short"))
	assert.Error(t, err)
}

func TestIdentitySignatureVerifies(t *testing.T) {
	id, err := GenerateIdentity()
	assert.NoError(t, err)

	message := []byte("harvest envelope")
	sigHex := id.Sign(message)
	sig, err := hex.DecodeString(sigHex)
	assert.NoError(t, err)

	pub := id.priv.Public().(ed25519.PublicKey)
	assert.True(t, ed25519.Verify(pub, message, sig))
}

func TestAddressFormat(t *testing.T) {
	id, err := GenerateIdentity()
	assert.NoError(t, err)

	addr := id.Address()
	assert.Equal(t, byte('G'), addr[0])
	assert.Greater(t, len(addr), 32)
}
