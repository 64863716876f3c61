// Package worker runs the isolated cipher context: a single goroutine that
// owns one key state, receives protocol messages over a channel, transforms
// frames through the codec, and posts correlated replies.
package worker

import (
	"encoding/json"

	apperrors "github.com/DavidOeztuerk/Skillswap-sub014/pkg/errors"
	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/stats"
)

// Kind enumerates the closed set of inbound message kinds.
type Kind string

const (
	KindInit              Kind = "init"
	KindUpdateKey         Kind = "updateKey"
	KindEncrypt           Kind = "encrypt"
	KindDecrypt           Kind = "decrypt"
	KindEnableEncryption  Kind = "enableEncryption"
	KindDisableEncryption Kind = "disableEncryption"
	KindGetStats          Kind = "getStats"
	KindCleanup           Kind = "cleanup"
)

// ReplyKind enumerates the closed set of outbound message kinds.
type ReplyKind string

const (
	ReplyReady           ReplyKind = "ready"
	ReplyKeyUpdated      ReplyKind = "keyUpdated"
	ReplyEncryptSuccess  ReplyKind = "encryptSuccess"
	ReplyDecryptSuccess  ReplyKind = "decryptSuccess"
	ReplyError           ReplyKind = "error"
	ReplyCleanupComplete ReplyKind = "cleanupComplete"
	ReplyStats           ReplyKind = "stats"
)

// KeyMaterial carries key material from the key-exchange collaborator: an
// interoperable JSON Web Key object plus its explicit generation number.
type KeyMaterial struct {
	JWK        json.RawMessage `json:"jwk"`
	Generation uint8           `json:"generation"`
}

// Request is one inbound protocol message. Frame buffers are moved, not
// copied: once a Request carrying a Frame is sent, the sender must not retain
// or reuse the slice.
type Request struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id,omitempty"`

	// Key is required for updateKey and optional for init.
	Key *KeyMaterial `json:"key,omitempty"`

	// Frame is required for encrypt and decrypt.
	Frame []byte `json:"frame,omitempty"`
}

// Response is one outbound protocol message, correlated to its Request by ID.
// Replies are not guaranteed to arrive in request order when the host
// pipelines calls; the ID is the only safe way to match them.
type Response struct {
	Kind ReplyKind `json:"kind"`
	ID   string    `json:"id,omitempty"`

	Frame        []byte  `json:"frame,omitempty"`
	ElapsedMs    float64 `json:"elapsedMs,omitempty"`
	WasEncrypted bool    `json:"wasEncrypted,omitempty"`
	Generation   uint8   `json:"generation,omitempty"`

	Stats *stats.Statistics `json:"stats,omitempty"`

	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// KnownKind reports whether k belongs to the closed inbound set.
func KnownKind(k Kind) bool {
	switch k {
	case KindInit, KindUpdateKey, KindEncrypt, KindDecrypt,
		KindEnableEncryption, KindDisableEncryption, KindGetStats, KindCleanup:
		return true
	default:
		return false
	}
}

// Validate type-guards a request: the kind must belong to the closed set and
// each variant's required payload fields must be present. Nothing beyond the
// variant's shape is assumed. A validation failure becomes an error reply,
// never a crash or a silent drop.
func (r Request) Validate() error {
	if !KnownKind(r.Kind) {
		return apperrors.NewUnknownKind(string(r.Kind))
	}

	switch r.Kind {
	case KindEncrypt, KindDecrypt:
		if r.ID == "" {
			return apperrors.NewBadMessage("missing correlation id", map[string]interface{}{
				"kind": r.Kind,
			})
		}
		if r.Frame == nil {
			return apperrors.NewBadMessage("missing frame payload", map[string]interface{}{
				"kind": r.Kind,
			})
		}
	case KindUpdateKey:
		if r.Key == nil || len(r.Key.JWK) == 0 {
			return apperrors.NewBadMessage("missing key material", map[string]interface{}{
				"kind": r.Kind,
			})
		}
	case KindInit:
		// Seed key is optional, but if present it must carry a JWK.
		if r.Key != nil && len(r.Key.JWK) == 0 {
			return apperrors.NewBadMessage("init key without JWK", map[string]interface{}{
				"kind": r.Kind,
			})
		}
	}

	return nil
}

// errorResponse builds an error reply preserving the request's correlation id
// so the host's pending caller can still be resolved.
func errorResponse(id string, err error) Response {
	return Response{
		Kind:  ReplyError,
		ID:    id,
		Error: err.Error(),
		Code:  apperrors.GetErrorCode(err),
	}
}
