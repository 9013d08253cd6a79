package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrStaleReference     = errors.New("referenced entity no longer exists")
	ErrJobNotClaimable    = errors.New("job is not in a claimable state")
	ErrSubscriptionGone   = errors.New("push subscription is gone")
	ErrPushUnconfigured   = errors.New("push credentials not configured")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
