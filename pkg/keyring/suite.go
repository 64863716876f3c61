package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Suite identifies the AEAD construction a cipher context uses. It is chosen
// once at context construction; every key imported into that context is bound
// to the same suite.
type Suite string

const (
	SuiteAESGCM           Suite = "AES-256-GCM"
	SuiteChaCha20Poly1305 Suite = "ChaCha20-Poly1305"
)

// Security parameters shared by both suites
const (
	KeySize   = 32 // 256-bit keys
	NonceSize = 12 // 96-bit nonces
	TagSize   = 16 // 128-bit authentication tags
)

// SupportedSuites lists the suites a context may be constructed with.
var SupportedSuites = []Suite{
	SuiteAESGCM,
	SuiteChaCha20Poly1305,
}

// ParseSuite validates a configured suite name.
func ParseSuite(name string) (Suite, error) {
	switch Suite(name) {
	case SuiteAESGCM:
		return SuiteAESGCM, nil
	case SuiteChaCha20Poly1305:
		return SuiteChaCha20Poly1305, nil
	default:
		return "", fmt.Errorf("unsupported cipher suite: %q", name)
	}
}

// newAEAD builds the suite's AEAD from raw key material. The constructors copy
// the key, so callers may zero raw immediately afterwards.
func (s Suite) newAEAD(raw []byte) (cipher.AEAD, error) {
	switch s {
	case SuiteAESGCM:
		block, err := aes.NewCipher(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to create AES cipher: %w", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCM mode: %w", err)
		}
		return aead, nil
	case SuiteChaCha20Poly1305:
		aead, err := chacha20poly1305.New(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to create ChaCha20-Poly1305: %w", err)
		}
		return aead, nil
	default:
		return nil, fmt.Errorf("unsupported cipher suite: %q", s)
	}
}
