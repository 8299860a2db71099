package service

import "errors"

var (
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrEmptyOwner        = errors.New("no owner id provided")
	ErrEmptyPayload      = errors.New("no payload provided")

	ErrNoActiveSession = errors.New("no active session")

	ErrNoTargetUser       = errors.New("no target user id for migration")
	ErrMigrationToGuest   = errors.New("migration target equals the guest id")
	ErrUnknownResolution  = errors.New("unknown conflict resolution")
	ErrMigrationCompleted = errors.New("migration already completed for another user")

	ErrInvalidToken = errors.New("invalid access token")
)
