package keyring

import (
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"strings"

	apperrors "github.com/DavidOeztuerk/Skillswap-sub014/pkg/errors"
)

// KeyHandle is an opaque, non-extractable reference to symmetric key material.
// The raw bytes are consumed during import and never stored or re-exported;
// the handle is only usable through Seal and Open.
type KeyHandle struct {
	aead  cipher.AEAD
	suite Suite
}

// jwk is the subset of a JSON Web Key this subsystem accepts. Keys arrive
// from the key-exchange collaborator as symmetric "oct" keys.
type jwk struct {
	Kty string `json:"kty"`
	K   string `json:"k"`
	Alg string `json:"alg,omitempty"`
	Ext *bool  `json:"ext,omitempty"`
}

// NewKeyHandle imports raw key material into an opaque handle for the given
// suite. The raw slice is zeroed before returning, whether or not the import
// succeeds.
func NewKeyHandle(suite Suite, raw []byte) (*KeyHandle, error) {
	defer zero(raw)

	if len(raw) != KeySize {
		return nil, apperrors.NewInvalidKey("wrong key length", map[string]interface{}{
			"expected_bytes": KeySize,
			"actual_bytes":   len(raw),
		})
	}

	aead, err := suite.newAEAD(raw)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to construct AEAD").WithCode(apperrors.CodeInvalidKey)
	}

	return &KeyHandle{aead: aead, suite: suite}, nil
}

// ImportJWK imports an interoperable JSON Web Key object into an opaque
// handle. Only symmetric ("oct") 256-bit keys are accepted.
func ImportJWK(data []byte, suite Suite) (*KeyHandle, error) {
	var key jwk
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, apperrors.NewInvalidKey("not a valid JWK object")
	}

	if key.Kty != "oct" {
		return nil, apperrors.NewInvalidKey("unsupported key type", map[string]interface{}{
			"kty": key.Kty,
		})
	}
	if key.K == "" {
		return nil, apperrors.NewInvalidKey("missing key material")
	}

	// RFC 7515 base64url without padding; tolerate padded input.
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(key.K, "="))
	if err != nil {
		return nil, apperrors.NewInvalidKey("key material is not base64url")
	}

	return NewKeyHandle(suite, raw)
}

// Seal appends the authenticated encryption of plaintext to dst and returns
// the extended slice. No associated data is bound.
func (h *KeyHandle) Seal(dst, nonce, plaintext []byte) []byte {
	return h.aead.Seal(dst, nonce, plaintext, nil)
}

// Open authenticates and decrypts ciphertext, returning a freshly allocated
// plaintext. The error from the underlying AEAD is returned untouched.
func (h *KeyHandle) Open(nonce, ciphertext []byte) ([]byte, error) {
	return h.aead.Open(nil, nonce, ciphertext, nil)
}

// Suite returns the AEAD construction this handle is bound to.
func (h *KeyHandle) Suite() Suite {
	return h.suite
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
