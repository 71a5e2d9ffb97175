package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies the failure kind of a pipeline or retrieval operation.
type ErrorCode string

const (
	// ErrCodeInvalidLocator indicates an object URI that cannot be decomposed into bucket and key.
	ErrCodeInvalidLocator ErrorCode = "INVALID_LOCATOR"
	// ErrCodeObjectUnavailable indicates the blob store could not return the object.
	ErrCodeObjectUnavailable ErrorCode = "OBJECT_UNAVAILABLE"
	// ErrCodeCredentialMissing indicates the inference provider credential is not configured.
	ErrCodeCredentialMissing ErrorCode = "CREDENTIAL_MISSING"
	// ErrCodeInferenceUnavailable indicates a transport or service failure of a model call.
	ErrCodeInferenceUnavailable ErrorCode = "INFERENCE_UNAVAILABLE"
	// ErrCodeMalformedOutput indicates model output that does not parse into the expected schema.
	ErrCodeMalformedOutput ErrorCode = "MALFORMED_OUTPUT"
	// ErrCodeNoteNotFound indicates no note matches the given identifier.
	ErrCodeNoteNotFound ErrorCode = "NOTE_NOT_FOUND"
	// ErrCodeInvalidInput indicates empty or unusable input text.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInvalidQuery indicates an empty search query.
	ErrCodeInvalidQuery ErrorCode = "INVALID_QUERY"
	// ErrCodeMissingScope indicates a search without an owner scope.
	ErrCodeMissingScope ErrorCode = "MISSING_SCOPE"
)

// Error is a structured error carrying a failure kind.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates an error of the given kind.
func New(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a kind and message.
func Wrap(cause error, code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// InvalidLocator creates an invalid locator error.
func InvalidLocator(uri, reason string) *Error {
	return New(ErrCodeInvalidLocator, reason).WithContext("uri", uri)
}

// ObjectUnavailable creates an object unavailable error.
func ObjectUnavailable(msg string, cause error) *Error {
	return Wrap(cause, ErrCodeObjectUnavailable, msg)
}

// CredentialMissing creates a credential missing error.
func CredentialMissing(provider string) *Error {
	return Newf(ErrCodeCredentialMissing, "no credential configured for provider %q", provider)
}

// InferenceUnavailable creates an inference unavailable error.
func InferenceUnavailable(msg string, cause error) *Error {
	return Wrap(cause, ErrCodeInferenceUnavailable, msg)
}

// MalformedOutput creates a malformed output error that keeps the raw model text.
func MalformedOutput(raw string, cause error) *Error {
	return Wrap(cause, ErrCodeMalformedOutput, "model output is not a valid interpretation").
		WithContext("raw_output", raw)
}

// NoteNotFound creates a note not found error.
func NoteNotFound(uid string) *Error {
	return Newf(ErrCodeNoteNotFound, "note not found: %s", uid).WithContext("note_id", uid)
}

// InvalidInput creates an invalid input error.
func InvalidInput(msg string) *Error {
	return New(ErrCodeInvalidInput, msg)
}

// InvalidQuery creates an invalid query error.
func InvalidQuery(msg string) *Error {
	return New(ErrCodeInvalidQuery, msg)
}

// MissingScope creates a missing scope error.
func MissingScope(msg string) *Error {
	return New(ErrCodeMissingScope, msg)
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode checks if an error in the chain is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if e, ok := As(err); ok {
		return e.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error carries no code.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	if e, ok := As(err); ok {
		return e.Code
	}
	return defaultCode
}
