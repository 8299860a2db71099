package adapter

import "errors"

var (
	// ErrUnauthorized means the backend rejected the bearer token. Not
	// retryable; the user has to sign in again.
	ErrUnauthorized = errors.New("client unauthorized")
	// ErrRemoteUnavailable marks transient transport or server failures. The
	// sync processor retries these up to its cap.
	ErrRemoteUnavailable = errors.New("remote store unavailable")
)
