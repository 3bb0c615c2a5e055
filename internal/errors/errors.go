package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Validation errors (VALID-001 to VALID-099), raised before any network call
	ErrCodeInvalidCredentials ErrorCode = "VALID-001"
	ErrCodeInvalidInput       ErrorCode = "VALID-002"

	// Network errors (NET-001 to NET-099)
	ErrCodeNetworkUnreachable ErrorCode = "NET-001"
	ErrCodeNetworkTimeout     ErrorCode = "NET-002"

	// Authentication errors (AUTH-001 to AUTH-099)
	ErrCodeUnauthorized     ErrorCode = "AUTH-001"
	ErrCodeRefreshFailed    ErrorCode = "AUTH-002"
	ErrCodeNotAuthenticated ErrorCode = "AUTH-003"
	ErrCodeSessionEnded     ErrorCode = "AUTH-004"

	// Storage errors (STORE-001 to STORE-099)
	ErrCodeStorageRead   ErrorCode = "STORE-001"
	ErrCodeStorageWrite  ErrorCode = "STORE-002"
	ErrCodeStorageCrypto ErrorCode = "STORE-003"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"
)

// DevquoteError represents an error with code, suggestions, and documentation
type DevquoteError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *DevquoteError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *DevquoteError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DevquoteError with the same code.
// This lets callers compare against sentinel values built with New.
func (e *DevquoteError) Is(target error) bool {
	t, ok := target.(*DevquoteError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new DevquoteError
func New(code ErrorCode, message string) *DevquoteError {
	return &DevquoteError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new DevquoteError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *DevquoteError {
	return &DevquoteError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *DevquoteError) WithSuggestion(suggestion string) *DevquoteError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *DevquoteError) WithSuggestions(suggestions ...string) *DevquoteError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *DevquoteError) WithDocs(url string) *DevquoteError {
	e.DocsURL = url
	return e
}

// CodeOf returns the code of the first DevquoteError in err's chain,
// or the empty code when there is none.
func CodeOf(err error) ErrorCode {
	var de *DevquoteError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HasCode reports whether any DevquoteError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var de *DevquoteError
		if !stderrors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Cause
	}
	return false
}

// Common error constructors for frequently used errors

// NewValidationError creates a client-side validation error for a field
func NewValidationError(field, detail string) *DevquoteError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, detail))
}

// NewInvalidCredentialsError creates an error for blank or malformed credentials
func NewInvalidCredentialsError(detail string) *DevquoteError {
	return New(ErrCodeInvalidCredentials, fmt.Sprintf("invalid credentials: %s", detail)).
		WithSuggestion("Provide both --username and --password")
}

// NewNetworkError creates an error for an unreachable backend
func NewNetworkError(cause error) *DevquoteError {
	return Wrap(ErrCodeNetworkUnreachable, "network error", cause).
		WithSuggestion("Check your connection and the configured api.base_url").
		WithSuggestion("Try again in a moment")
}

// NewTimeoutError creates an error for a request that exceeded its deadline
func NewTimeoutError(cause error) *DevquoteError {
	return Wrap(ErrCodeNetworkTimeout, "timeout", cause).
		WithSuggestion("Try again in a moment").
		WithSuggestion("Increase api.timeout if the backend is slow")
}

// NewRefreshFailedError creates the fatal session error raised when a token refresh fails
func NewRefreshFailedError(cause error) *DevquoteError {
	return Wrap(ErrCodeRefreshFailed, "session expired", cause).
		WithSuggestion("Run 'devquote auth login' to sign in again")
}

// NewNotAuthenticatedError creates an error for operations that need a session
func NewNotAuthenticatedError(detail string) *DevquoteError {
	return New(ErrCodeNotAuthenticated, fmt.Sprintf("not authenticated: %s", detail)).
		WithSuggestion("Run 'devquote auth login' first")
}

// NewSessionEndedError creates an error for work that outlived its session
func NewSessionEndedError() *DevquoteError {
	return New(ErrCodeSessionEnded, "session ended while the request was in flight")
}

// NewStorageReadError creates an error for a failed token store read
func NewStorageReadError(key string, cause error) *DevquoteError {
	return Wrap(ErrCodeStorageRead, fmt.Sprintf("failed to read %s from token store", key), cause).
		WithSuggestion("Check permissions of the storage path")
}

// NewStorageWriteError creates an error for a failed token store write
func NewStorageWriteError(op string, cause error) *DevquoteError {
	return Wrap(ErrCodeStorageWrite, fmt.Sprintf("token store %s failed", op), cause).
		WithSuggestion("Check permissions and free space of the storage path")
}

// NewStorageCryptoError creates an error for sealing or key derivation failures
func NewStorageCryptoError(cause error) *DevquoteError {
	return Wrap(ErrCodeStorageCrypto, "token store encryption failed", cause).
		WithSuggestion("Check storage.passphrase")
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(details string) *DevquoteError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Run 'devquote config view' to inspect the effective configuration").
		WithSuggestion("Check ~/.devquote/config.yaml and DEVQUOTE_* environment variables")
}
