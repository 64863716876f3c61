// Package frame implements the on-wire format and the authenticated
// encryption of individual encoded media frames.
//
// Encrypted frames are laid out as
//
//	[generation: 1 byte][nonce: 12 bytes][ciphertext ‖ tag: >= 17 bytes]
//
// The generation byte and nonce length are part of the compatibility surface
// and must not change.
package frame

import (
	"crypto/rand"

	apperrors "github.com/DavidOeztuerk/Skillswap-sub014/pkg/errors"
	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/keyring"
)

const (
	// GenerationSize is the width of the leading key-generation tag.
	GenerationSize = 1

	// HeaderSize is the fixed prefix before the ciphertext.
	HeaderSize = GenerationSize + keyring.NonceSize

	// MinEncryptedSize is the smallest possible encrypted frame: header,
	// authentication tag, and at least one byte of plaintext. Anything
	// shorter is definitely not ciphertext.
	MinEncryptedSize = HeaderSize + keyring.TagSize + 1

	// DefaultGenerationTolerance bounds how far a frame's generation byte may
	// sit from a live generation and still be judged ciphertext. Rotations
	// only move the generation forward in small steps, so a "far" mismatch is
	// reliably a raw frame whose first byte merely looks like a tag. This is
	// a tunable heuristic, not a proven constant.
	DefaultGenerationTolerance = 5
)

// Codec transforms individual frames against a key state. A Codec is
// constructed once per cipher context and is safe for sequential reuse; it
// holds no per-frame state.
type Codec struct {
	tolerance uint8
}

// NewCodec builds a codec with the given generation tolerance. A tolerance of
// zero selects the default.
func NewCodec(tolerance uint8) Codec {
	if tolerance == 0 {
		tolerance = DefaultGenerationTolerance
	}
	return Codec{tolerance: tolerance}
}

// Tolerance returns the configured generation tolerance.
func (c Codec) Tolerance() uint8 {
	return c.tolerance
}

// DecryptResult carries the outcome of a decode attempt. When WasEncrypted is
// false the frame was a passthrough and Payload aliases the input buffer
// unchanged; otherwise Payload is freshly allocated plaintext.
type DecryptResult struct {
	Payload      []byte
	WasEncrypted bool
	Generation   uint8
}

// EncryptFrame seals one plaintext frame under the given key and generation.
// A fresh random nonce is drawn per call; nonces must never repeat under the
// same key. The input buffer is not needed after the call returns.
func (c Codec) EncryptFrame(handle *keyring.KeyHandle, generation uint8, plaintext []byte) ([]byte, error) {
	if handle == nil {
		return nil, apperrors.New("no key handle for encryption").WithCode(apperrors.CodeEncryptFailed)
	}

	out := make([]byte, HeaderSize, HeaderSize+len(plaintext)+keyring.TagSize)
	out[0] = generation

	if _, err := rand.Read(out[GenerationSize:HeaderSize]); err != nil {
		return nil, apperrors.Wrap(err, "failed to generate nonce").WithCode(apperrors.CodeEncryptFailed)
	}

	return handle.Seal(out, out[GenerationSize:HeaderSize], plaintext), nil
}

// DecryptFrame decodes one incoming frame against the key state.
//
// Frames shorter than the minimum encrypted length, or any frame arriving
// before a key is loaded, are returned unchanged as passthrough; that is the
// expected steady state before encryption starts. Otherwise the generation
// byte selects the current or previous key. When neither matches, the minimal
// circular distance to the live generations classifies the frame: beyond the
// tolerance it is a raw frame (passthrough), within it the frame is
// ciphertext whose key was rotated away, which is a hard error rather than
// garbage forwarded downstream. Authentication failures are always errors.
func (c Codec) DecryptFrame(state keyring.State, frame []byte) (DecryptResult, error) {
	if state.Current == nil || len(frame) < MinEncryptedSize {
		return DecryptResult{Payload: frame}, nil
	}

	generation := frame[0]
	nonce := frame[GenerationSize:HeaderSize]
	ciphertext := frame[HeaderSize:]

	handle, ok := state.Lookup(generation)
	if !ok {
		distance, _ := state.NearestDistance(generation)
		if distance > c.tolerance {
			// First byte is coincidentally frame data, not a generation tag.
			return DecryptResult{Payload: frame}, nil
		}
		return DecryptResult{}, apperrors.NewStaleGeneration(generation, state.LiveGenerations())
	}

	plaintext, err := handle.Open(nonce, ciphertext)
	if err != nil {
		return DecryptResult{}, apperrors.NewAuthenticationFailed(generation, err)
	}

	return DecryptResult{Payload: plaintext, WasEncrypted: true, Generation: generation}, nil
}
