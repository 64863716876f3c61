package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Standard error types that can be used throughout the application
var (
	// Standard error sentinel values
	ErrInvalidInput  = errors.New("invalid input")
	ErrInternalError = errors.New("internal error")
	ErrCanceled      = errors.New("operation canceled")

	// Domain-specific error sentinel values
	ErrInvalidKey           = errors.New("invalid key material")
	ErrEncryptionFailed     = errors.New("frame encryption failed")
	ErrAuthenticationFailed = errors.New("frame authentication failed")
	ErrStaleGeneration      = errors.New("key generation no longer available")
	ErrBadMessage           = errors.New("malformed protocol message")
	ErrUnknownMessageKind   = errors.New("unknown message kind")
	ErrWorkerClosed         = errors.New("cipher worker closed")
)

// Well-known error codes carried on protocol error replies.
const (
	CodeInvalidKey      = "INVALID_KEY"
	CodeEncryptFailed   = "ENCRYPT_FAILED"
	CodeAuthFailed      = "AUTH_FAILED"
	CodeStaleGeneration = "STALE_GENERATION"
	CodeBadMessage      = "BAD_MESSAGE"
	CodeUnknownKind     = "UNKNOWN_KIND"
	CodeInternal        = "INTERNAL_ERROR"
)

// Error represents a structured error with creation location and additional context
type Error struct {
	// original is the underlying error
	original error

	// message is the error message
	message string

	// fields contains contextual information
	fields map[string]interface{}

	// file and line record where the error was created
	file string
	line int

	// Code is an optional error code for categorization
	Code string
}

// New creates a new structured error with the given message
func New(message string, fields ...map[string]interface{}) *Error {
	_, file, line, _ := runtime.Caller(1)

	var fieldMap map[string]interface{}
	if len(fields) > 0 && fields[0] != nil {
		fieldMap = fields[0]
	} else {
		fieldMap = make(map[string]interface{})
	}

	return &Error{
		original: errors.New(message),
		message:  message,
		fields:   fieldMap,
		file:     file,
		line:     line,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, message string, fields ...map[string]interface{}) *Error {
	if err == nil {
		return nil
	}

	_, file, line, _ := runtime.Caller(1)

	var fieldMap map[string]interface{}
	if len(fields) > 0 && fields[0] != nil {
		fieldMap = fields[0]
	} else {
		fieldMap = make(map[string]interface{})
	}

	return &Error{
		original: err,
		message:  message,
		fields:   fieldMap,
		file:     file,
		line:     line,
	}
}

// WithField adds a single field to the error context
func (e *Error) WithField(key string, value interface{}) *Error {
	if e == nil {
		return nil
	}

	// Create a copy to avoid modifying the original
	result := &Error{
		original: e.original,
		message:  e.message,
		fields:   make(map[string]interface{}, len(e.fields)+1),
		file:     e.file,
		line:     e.line,
		Code:     e.Code,
	}

	for k, v := range e.fields {
		result.fields[k] = v
	}
	result.fields[key] = value

	return result
}

// WithCode adds an error code to the error
func (e *Error) WithCode(code string) *Error {
	if e == nil {
		return nil
	}

	return &Error{
		original: e.original,
		message:  e.message,
		fields:   e.fields,
		file:     e.file,
		line:     e.line,
		Code:     code,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil || e.original == nil {
		return ""
	}

	if e.message == "" {
		return e.original.Error()
	}

	return fmt.Sprintf("%s: %v", e.message, e.original)
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.original
}

// Location returns the file:line where the error was created
func (e *Error) Location() string {
	if e == nil {
		return ""
	}

	parts := strings.Split(e.file, "/")
	filename := parts[len(parts)-1]

	return fmt.Sprintf("%s:%d", filename, e.line)
}

// GetFields returns the error's context fields
func (e *Error) GetFields() map[string]interface{} {
	if e == nil {
		return nil
	}
	return e.fields
}

// GetCode returns the error's code
func (e *Error) GetCode() string {
	if e == nil {
		return ""
	}
	return e.Code
}

// Is reports whether any error in err's tree matches target.
// Implements the errors.Is interface.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}

	if errors.Is(e.original, target) {
		return true
	}

	return e == target
}

// NewInvalidKey creates a new ErrInvalidKey error with additional context
func NewInvalidKey(details string, fields ...map[string]interface{}) *Error {
	fieldMap := make(map[string]interface{})
	if len(fields) > 0 && fields[0] != nil {
		fieldMap = fields[0]
	}

	_, file, line, _ := runtime.Caller(1)

	return &Error{
		original: ErrInvalidKey,
		message:  fmt.Sprintf("invalid key material: %s", details),
		fields:   fieldMap,
		file:     file,
		line:     line,
		Code:     CodeInvalidKey,
	}
}

// NewStaleGeneration reports a frame whose generation tag is close to a known
// generation but matches neither live key. The frame is ciphertext that can no
// longer be decrypted.
func NewStaleGeneration(frameGeneration uint8, known []uint8) *Error {
	_, file, line, _ := runtime.Caller(1)

	return &Error{
		original: ErrStaleGeneration,
		message:  fmt.Sprintf("frame generation %d does not match any live key", frameGeneration),
		fields: map[string]interface{}{
			"frame_generation": frameGeneration,
			"live_generations": known,
		},
		file: file,
		line: line,
		Code: CodeStaleGeneration,
	}
}

// NewAuthenticationFailed reports an AEAD open failure for a selected key.
func NewAuthenticationFailed(generation uint8, cause error) *Error {
	_, file, line, _ := runtime.Caller(1)

	message := "frame failed authentication"
	if cause != nil {
		message = fmt.Sprintf("frame failed authentication: %v", cause)
	}

	return &Error{
		original: ErrAuthenticationFailed,
		message:  message,
		fields: map[string]interface{}{
			"frame_generation": generation,
		},
		file: file,
		line: line,
		Code: CodeAuthFailed,
	}
}

// NewBadMessage creates a new ErrBadMessage error with additional context
func NewBadMessage(details string, fields ...map[string]interface{}) *Error {
	fieldMap := make(map[string]interface{})
	if len(fields) > 0 && fields[0] != nil {
		fieldMap = fields[0]
	}

	_, file, line, _ := runtime.Caller(1)

	return &Error{
		original: ErrBadMessage,
		message:  fmt.Sprintf("malformed protocol message: %s", details),
		fields:   fieldMap,
		file:     file,
		line:     line,
		Code:     CodeBadMessage,
	}
}

// NewUnknownKind creates a new ErrUnknownMessageKind error for a message whose
// kind is outside the closed protocol set.
func NewUnknownKind(kind string) *Error {
	_, file, line, _ := runtime.Caller(1)

	return &Error{
		original: ErrUnknownMessageKind,
		message:  fmt.Sprintf("unknown message kind %q", kind),
		fields: map[string]interface{}{
			"kind": kind,
		},
		file: file,
		line: line,
		Code: CodeUnknownKind,
	}
}

// IsErrorType checks if an error is of a specific error type
func IsErrorType(err, target error) bool {
	return errors.Is(err, target)
}

// GetErrorCode extracts the error code from an error if it's a structured error
func GetErrorCode(err error) string {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.GetCode()
	}
	return ""
}

// GetErrorFields extracts fields from an error if it's a structured error
func GetErrorFields(err error) map[string]interface{} {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.GetFields()
	}
	return nil
}
