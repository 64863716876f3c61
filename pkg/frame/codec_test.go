package frame

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/DavidOeztuerk/Skillswap-sub014/pkg/errors"
	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/keyring"
)

func newHandle(t *testing.T, suite keyring.Suite) *keyring.KeyHandle {
	t.Helper()
	raw := make([]byte, keyring.KeySize)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	handle, err := keyring.NewKeyHandle(suite, raw)
	require.NoError(t, err)
	return handle
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	for _, suite := range keyring.SupportedSuites {
		t.Run(string(suite), func(t *testing.T) {
			codec := NewCodec(0)
			handle := newHandle(t, suite)
			state := keyring.State{}.WithKey(handle, 42)

			plaintext := randomBytes(t, 1200)
			original := append([]byte(nil), plaintext...)

			encrypted, err := codec.EncryptFrame(handle, 42, plaintext)
			require.NoError(t, err)
			assert.Equal(t, uint8(42), encrypted[0])
			assert.Len(t, encrypted, HeaderSize+len(original)+keyring.TagSize)

			result, err := codec.DecryptFrame(state, encrypted)
			require.NoError(t, err)
			assert.True(t, result.WasEncrypted)
			assert.Equal(t, uint8(42), result.Generation)
			assert.Equal(t, original, result.Payload)
		})
	}
}

func TestEncryptUsesFreshNonces(t *testing.T) {
	codec := NewCodec(0)
	handle := newHandle(t, keyring.SuiteAESGCM)
	plaintext := []byte("the same frame twice")

	first, err := codec.EncryptFrame(handle, 1, plaintext)
	require.NoError(t, err)
	second, err := codec.EncryptFrame(handle, 1, plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, first[GenerationSize:HeaderSize], second[GenerationSize:HeaderSize])
	assert.NotEqual(t, first[HeaderSize:], second[HeaderSize:])
}

func TestTamperDetection(t *testing.T) {
	codec := NewCodec(0)
	handle := newHandle(t, keyring.SuiteAESGCM)
	state := keyring.State{}.WithKey(handle, 5)

	encrypted, err := codec.EncryptFrame(handle, 5, randomBytes(t, 256))
	require.NoError(t, err)

	tests := []struct {
		name   string
		offset int
	}{
		{name: "first ciphertext byte", offset: HeaderSize},
		{name: "middle of ciphertext", offset: HeaderSize + 128},
		{name: "authentication tag", offset: len(encrypted) - 1},
		{name: "nonce", offset: GenerationSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tampered := append([]byte(nil), encrypted...)
			tampered[tt.offset] ^= 0x01

			result, err := codec.DecryptFrame(state, tampered)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
			assert.Equal(t, apperrors.CodeAuthFailed, apperrors.GetErrorCode(err))
			assert.Nil(t, result.Payload, "tampered plaintext must never be forwarded")
		})
	}
}

func TestShortFramePassthrough(t *testing.T) {
	codec := NewCodec(0)
	handle := newHandle(t, keyring.SuiteAESGCM)
	state := keyring.State{}.WithKey(handle, 1)

	for _, size := range []int{0, 1, 12, MinEncryptedSize - 1} {
		original := randomBytes(t, size)
		input := append([]byte(nil), original...)

		result, err := codec.DecryptFrame(state, input)
		require.NoError(t, err)
		assert.False(t, result.WasEncrypted)
		assert.Equal(t, original, result.Payload)
	}
}

func TestNoKeyPassthrough(t *testing.T) {
	codec := NewCodec(0)

	original := randomBytes(t, 512)
	input := append([]byte(nil), original...)

	result, err := codec.DecryptFrame(keyring.State{}, input)
	require.NoError(t, err)
	assert.False(t, result.WasEncrypted)
	assert.Equal(t, original, result.Payload)
}

func TestRotationContinuity(t *testing.T) {
	codec := NewCodec(0)
	handleA := newHandle(t, keyring.SuiteAESGCM)
	handleB := newHandle(t, keyring.SuiteAESGCM)
	handleC := newHandle(t, keyring.SuiteAESGCM)

	plaintext := randomBytes(t, 640)
	original := append([]byte(nil), plaintext...)

	state := keyring.State{}.WithKey(handleA, 1)
	encrypted, err := codec.EncryptFrame(handleA, 1, plaintext)
	require.NoError(t, err)

	// One rotation: a frame encrypted under the prior key still decrypts.
	state = state.WithKey(handleB, 2)
	result, err := codec.DecryptFrame(state, append([]byte(nil), encrypted...))
	require.NoError(t, err)
	assert.True(t, result.WasEncrypted)
	assert.Equal(t, uint8(1), result.Generation)
	assert.Equal(t, original, result.Payload)

	// A second rotation retires the key; the frame is unrecoverable.
	state = state.WithKey(handleC, 3)
	_, err = codec.DecryptFrame(state, encrypted)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStaleGeneration)
	assert.Equal(t, apperrors.CodeStaleGeneration, apperrors.GetErrorCode(err))
}

func TestGenerationWraparound(t *testing.T) {
	codec := NewCodec(0)
	handleOld := newHandle(t, keyring.SuiteAESGCM)
	handleNew := newHandle(t, keyring.SuiteAESGCM)

	plaintext := randomBytes(t, 480)
	original := append([]byte(nil), plaintext...)

	state := keyring.State{}.WithKey(handleOld, 255)
	encrypted, err := codec.EncryptFrame(handleOld, 255, plaintext)
	require.NoError(t, err)

	// 255 -> 0 is a one-step forward rotation.
	state = state.WithKey(handleNew, 0)
	result, err := codec.DecryptFrame(state, encrypted)
	require.NoError(t, err)
	assert.True(t, result.WasEncrypted)
	assert.Equal(t, uint8(255), result.Generation)
	assert.Equal(t, original, result.Payload)
}

func TestToleranceClassification(t *testing.T) {
	codec := NewCodec(0)
	handleA := newHandle(t, keyring.SuiteAESGCM)
	handleB := newHandle(t, keyring.SuiteAESGCM)
	state := keyring.State{}.WithKey(handleA, 0).WithKey(handleB, 1)

	frameWithGeneration := func(generation uint8) []byte {
		f := randomBytes(t, MinEncryptedSize+32)
		f[0] = generation
		return f
	}

	tests := []struct {
		name       string
		generation uint8
		wantStale  bool
	}{
		// current=1, previous=0, tolerance=5
		{name: "far mismatch is a raw frame", generation: 120, wantStale: false},
		{name: "near mismatch is unrecoverable ciphertext", generation: 3, wantStale: true},
		{name: "at tolerance boundary", generation: 6, wantStale: true},
		{name: "just past tolerance", generation: 7, wantStale: false},
		{name: "near mismatch behind on the ring", generation: 251, wantStale: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := frameWithGeneration(tt.generation)
			original := append([]byte(nil), input...)

			result, err := codec.DecryptFrame(state, input)
			if tt.wantStale {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrStaleGeneration)
			} else {
				require.NoError(t, err)
				assert.False(t, result.WasEncrypted)
				assert.Equal(t, original, result.Payload)
			}
		})
	}
}

func TestCustomTolerance(t *testing.T) {
	handle := newHandle(t, keyring.SuiteAESGCM)
	state := keyring.State{}.WithKey(handle, 1)

	input := randomBytes(t, MinEncryptedSize)
	input[0] = 9 // distance 8 from the only live generation

	_, err := NewCodec(0).DecryptFrame(state, append([]byte(nil), input...))
	require.NoError(t, err, "distance 8 exceeds the default tolerance")

	_, err = NewCodec(10).DecryptFrame(state, input)
	require.Error(t, err, "distance 8 is within a widened tolerance")
	assert.ErrorIs(t, err, apperrors.ErrStaleGeneration)
}
