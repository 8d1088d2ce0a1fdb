package crm

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationFailed means the platform rejected our credential.
	// Interactive flows surface this as "reconnect your account".
	ErrAuthenticationFailed = errors.New("platform authentication failed")

	// ErrNotFound means the platform has no such resource
	ErrNotFound = errors.New("platform resource not found")

	// ErrRateLimited means the platform throttled the call. Callers may
	// retry with backoff; nothing here retries automatically.
	ErrRateLimited = errors.New("platform rate limited")

	// ErrNotImplemented marks operations a provider does not support
	ErrNotImplemented = errors.New("operation not implemented for this platform")
)

// PlatformError is an opaque platform failure. It is surfaced to the
// caller but never retried automatically.
type PlatformError struct {
	Platform   string
	StatusCode int
	Message    string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Platform, e.StatusCode, e.Message)
}

// IsRetryable reports whether a provider error is worth retrying with
// backoff
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
