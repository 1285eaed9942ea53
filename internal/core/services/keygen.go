package services

import (
	"crypto/rand"
	"encoding/hex"
	"io"
)

// KeyLength is the length of a generated license key in characters.
const KeyLength = 32

// KeyGenerator produces opaque license keys: 32 lowercase hex characters
// drawn from 128 bits of entropy. Keys are identifiers, not verifiable
// tokens.
type KeyGenerator struct {
	entropy io.Reader
}

// NewKeyGenerator returns a generator reading from the given entropy source.
// A nil source falls back to crypto/rand.
func NewKeyGenerator(entropy io.Reader) *KeyGenerator {
	if entropy == nil {
		entropy = rand.Reader
	}
	return &KeyGenerator{entropy: entropy}
}

// Generate returns a new candidate key. Uniqueness is enforced by the store,
// not here.
func (g *KeyGenerator) Generate() (string, error) {
	buf := make([]byte, KeyLength/2)
	if _, err := io.ReadFull(g.entropy, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
