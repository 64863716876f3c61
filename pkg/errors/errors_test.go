package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New("test error")
	if err == nil {
		t.Fatal("New() returned nil")
	}

	if !strings.Contains(err.Error(), "test error") {
		t.Errorf("Expected error message to contain 'test error', got: %s", err.Error())
	}

	if err.Location() == "" {
		t.Error("Location should not be empty")
	}
}

func TestWrap(t *testing.T) {
	baseErr := errors.New("base error")
	err := Wrap(baseErr, "wrapped")

	if err == nil {
		t.Fatal("Wrap() returned nil")
	}

	if !strings.Contains(err.Error(), "wrapped") {
		t.Errorf("Expected error message to contain 'wrapped', got: %s", err.Error())
	}

	if unwrapped := errors.Unwrap(err); unwrapped != baseErr {
		t.Errorf("Unwrap() returned wrong error: %v", unwrapped)
	}

	if Wrap(nil, "no-op") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWithFieldAndCode(t *testing.T) {
	base := New("test error")
	err := base.WithField("generation", 7).WithCode(CodeStaleGeneration)

	fields := err.GetFields()
	if fields["generation"] != 7 {
		t.Errorf("Expected field['generation'] = 7, got: %v", fields["generation"])
	}

	if err.GetCode() != CodeStaleGeneration {
		t.Errorf("Expected code %s, got: %s", CodeStaleGeneration, err.GetCode())
	}

	// The original must stay untouched.
	if len(base.GetFields()) != 0 || base.GetCode() != "" {
		t.Error("WithField/WithCode must not mutate the receiver")
	}
}

func TestSentinelMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		sentinel error
		code     string
	}{
		{"invalid key", NewInvalidKey("wrong length"), ErrInvalidKey, CodeInvalidKey},
		{"stale generation", NewStaleGeneration(3, []uint8{5, 4}), ErrStaleGeneration, CodeStaleGeneration},
		{"authentication failed", NewAuthenticationFailed(5, errors.New("cipher: message authentication failed")), ErrAuthenticationFailed, CodeAuthFailed},
		{"bad message", NewBadMessage("missing id"), ErrBadMessage, CodeBadMessage},
		{"unknown kind", NewUnknownKind("selfDestruct"), ErrUnknownMessageKind, CodeUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, sentinel) = false", tt.err)
			}
			if tt.err.GetCode() != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, tt.err.GetCode())
			}
		})
	}
}

func TestGetErrorCode(t *testing.T) {
	var err error = NewStaleGeneration(1, []uint8{3, 2})

	if GetErrorCode(err) != CodeStaleGeneration {
		t.Errorf("Expected code %s, got %s", CodeStaleGeneration, GetErrorCode(err))
	}

	if GetErrorCode(errors.New("plain")) != "" {
		t.Error("Plain errors must not report a code")
	}

	fields := GetErrorFields(err)
	if fields["frame_generation"] == nil {
		t.Error("Expected frame_generation field on the error")
	}
}
