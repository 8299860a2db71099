package config

import "errors"

// Validation errors returned by [StructuredConfig.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidAdapterConfigs indicates invalid remote adapter settings
	// (for example, missing base URL or non-positive timeout).
	ErrInvalidAdapterConfigs = errors.New("invalid adapter configuration")
	// ErrInvalidStorageConfigs indicates invalid local storage settings
	// (for example, empty DSN or unsupported in-memory DSN).
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidSyncConfigs indicates invalid sync-queue settings
	// (for example, zero retry cap or record cap).
	ErrInvalidSyncConfigs = errors.New("invalid sync configuration")
	// ErrInvalidSessionConfigs indicates invalid session timer settings
	// (for example, backoff shorter than the initial check-in interval).
	ErrInvalidSessionConfigs = errors.New("invalid session configuration")
)
