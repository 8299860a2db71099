package store

import "errors"

var (
	// ErrRecordNotFound is returned when an operation references a local
	// record id that does not exist. This is a caller bug, never retried.
	ErrRecordNotFound = errors.New("record not found")
	// ErrSessionNotFound is returned when no session matches the requested id
	// or no active session pointer is set.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStateNotFound is returned when a durable state slot has never been
	// written.
	ErrStateNotFound = errors.New("state slot not found")
)
