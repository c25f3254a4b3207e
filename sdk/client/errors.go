package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthenticationFailed is returned when the plugin token cannot be
	// obtained or the backend keeps rejecting it after one refresh.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrInvalidCredentials is returned by Login on HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrConnection marks transport level failures.
	ErrConnection = errors.New("connection error")
	// ErrUnexpectedStatus marks non-200 responses.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrNotAuthenticated is returned by operations that need a logged in user.
	ErrNotAuthenticated = errors.New("not logged in")
)

// TransportError wraps a network or timeout failure that persisted after
// the retry.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrConnection }

// StatusError reports a non-200 response. Message holds the backend's JSON
// "error" field when present.
type StatusError struct {
	Endpoint string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.Code)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized {
		return ErrAuthenticationFailed
	}
	return ErrUnexpectedStatus
}
