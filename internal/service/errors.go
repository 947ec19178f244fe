package service

import (
	"errors"
	"fmt"

	"github.com/maheshrc27/xscheduler/internal/oauth1"
)

var (
	ErrValidation              = errors.New("validation error")
	ErrCredentialsNotFound     = errors.New("X API settings not found")
	ErrCredentialsIncomplete   = errors.New("X API credentials are incomplete")
	ErrCredentialsNotConnected = errors.New("X API account is not connected")
	ErrSigning                 = oauth1.ErrSigning
	ErrRemoteRejected          = errors.New("X API rejected the request")
	ErrTransport               = errors.New("X API unreachable")
	ErrPostNotFound            = errors.New("post not found")
	ErrPostNotEditable         = errors.New("post cannot be edited in its current state")
	ErrPostNotClaimable        = errors.New("post is not available for publishing")
	ErrAlreadyPublished        = errors.New("post is already published")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RemoteError is a non-2xx answer from X. Body is the response payload as
// received.
type RemoteError struct {
	StatusCode int
	Body       []byte
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("X API returned status %d: %s", e.StatusCode, e.Body)
}

func (e *RemoteError) Unwrap() error {
	return ErrRemoteRejected
}

// TransportError means the request never produced a response. It is always
// safe to retry.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("X API request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// Retriable reports whether err is a transport failure.
func Retriable(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsCredentialError groups the errors that send the user back to settings.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrCredentialsNotFound) ||
		errors.Is(err, ErrCredentialsIncomplete) ||
		errors.Is(err, ErrCredentialsNotConnected)
}
