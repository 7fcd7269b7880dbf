package outfit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors - Error kinds
var (
	ErrAuthentication   = errors.New("outfit: authentication failed")
	ErrNotAuthenticated = errors.New("outfit: not authenticated")
	ErrRequest          = errors.New("outfit: request failed")
	ErrTransport        = errors.New("outfit: transport failure")
)

// Sentinel errors - Operations
var (
	ErrPartialUpload  = errors.New("outfit: upload partially rejected")
	ErrNoFiles        = errors.New("outfit: no files to upload")
	ErrStorePersist   = errors.New("outfit: failed to persist")
	ErrStoreCorrupted = errors.New("outfit: store corrupted")
	ErrStoreClosed    = errors.New("outfit: store closed")
)

// AuthError is returned for HTTP 401 responses and for rejected login or
// registration attempts. It matches ErrAuthentication.
type AuthError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Message == "" {
		return ErrAuthentication.Error()
	}
	return fmt.Sprintf("%s: %s", ErrAuthentication.Error(), e.Message)
}

// Is reports whether target is ErrAuthentication.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuthentication
}

// RequestError is returned for non-success responses other than 401.
// It matches ErrRequest and unwraps to Err when set.
type RequestError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// Is reports whether target is ErrRequest.
func (e *RequestError) Is(target error) bool {
	return target == ErrRequest
}

// Unwrap implements the errors.Unwrap interface for error chaining.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the server answered 404.
func (e *RequestError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsServerError returns true for 5xx responses.
func (e *RequestError) IsServerError() bool {
	return e.StatusCode >= 500
}

// TransportError wraps network failures and unparseable response bodies.
// It matches ErrTransport.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTransport.Error(), e.Op, e.Err)
}

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Unwrap implements the errors.Unwrap interface for error chaining.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError represents an invalid client-side argument.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError with the given field and message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// StatusCode returns the HTTP status carried by err, or 0 if it has none.
func StatusCode(err error) int {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.StatusCode
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}

// errorMessage pulls a human-readable message out of an error body.
// The backend usually answers {"error": "..."}, but {"message": "..."} and
// {"error": {"message": "..."}} are accepted too. Anything else yields
// fallback.
func errorMessage(body []byte, fallback string) string {
	var flat struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &flat); err != nil {
		return fallback
	}

	if len(flat.Error) > 0 {
		var s string
		if err := json.Unmarshal(flat.Error, &s); err == nil && strings.TrimSpace(s) != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(flat.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	if flat.Message != "" {
		return flat.Message
	}
	return fallback
}
