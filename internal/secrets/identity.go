package secrets

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"fmt"
)

var addrEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Identity is the bot's signing identity: an ed25519 keypair whose public
// half doubles as the on-chain account address.
type Identity struct {
	priv ed25519.PrivateKey
}

// GenerateIdentity creates a fresh random identity.
func GenerateIdentity() (*Identity, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return &Identity{priv: priv}, nil
}

// IdentityFromSeed reconstructs an identity from its 32-byte seed.
func IdentityFromSeed(seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed length %d, expected %d", len(seed), ed25519.SeedSize)
	}
	return &Identity{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// Seed returns the 32-byte seed, the secret material stored encrypted.
func (id *Identity) Seed() []byte {
	return id.priv.Seed()
}

// Address returns the account address derived from the public key.
func (id *Identity) Address() string {
	pub := id.priv.Public().(ed25519.PublicKey)
	return "G" + addrEncoding.EncodeToString(pub)
}

// Sign signs a message and returns the hex encoded signature.
func (id *Identity) Sign(message []byte) string {
	return hex.EncodeToString(ed25519.Sign(id.priv, message))
}
