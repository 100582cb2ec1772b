package cdap

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// IdentityProtection is the default SDU protection policy: bytes pass
// through untouched.
type IdentityProtection struct{}

// Protect returns the SDU unchanged.
func (IdentityProtection) Protect(sdu []byte) ([]byte, error) {
	return sdu, nil
}

// Unprotect returns the SDU unchanged.
func (IdentityProtection) Unprotect(sdu []byte) ([]byte, error) {
	return sdu, nil
}

// AEADProtection seals every SDU with ChaCha20-Poly1305 under a shared key.
// The wire form is nonce || ciphertext; each Protect call draws a fresh
// random nonce.
type AEADProtection struct {
	aead cipher.AEAD
}

// NewAEADProtection creates an AEAD policy from a 32-byte key.
func NewAEADProtection(key []byte) (*AEADProtection, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("sdu protection key: %w", err)
	}
	return &AEADProtection{aead: aead}, nil
}

// Protect seals the SDU.
func (p *AEADProtection) Protect(sdu []byte) ([]byte, error) {
	nonce := make([]byte, p.aead.NonceSize(), p.aead.NonceSize()+len(sdu)+p.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("sdu nonce: %w", err)
	}
	return p.aead.Seal(nonce, nonce, sdu, nil), nil
}

// Unprotect opens a sealed SDU.
func (p *AEADProtection) Unprotect(sdu []byte) ([]byte, error) {
	if len(sdu) < p.aead.NonceSize() {
		return nil, fmt.Errorf("sealed sdu shorter than nonce")
	}
	nonce, ciphertext := sdu[:p.aead.NonceSize()], sdu[p.aead.NonceSize():]
	plain, err := p.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed sdu: %w", err)
	}
	return plain, nil
}
