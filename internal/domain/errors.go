package domain

import "errors"

var (
	// ErrDataUnavailable is returned when attempts or profiles cannot be fetched.
	// Callers may retry.
	ErrDataUnavailable = errors.New("leaderboard data unavailable")
	// ErrInvalidAttempt indicates an attempt record is missing required fields.
	ErrInvalidAttempt = errors.New("invalid attempt record")
	// ErrAttemptNotFound indicates the attempt does not exist for the user.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptConflict indicates the attempt id is already owned by another user.
	ErrAttemptConflict = errors.New("attempt belongs to another user")
	// ErrInvalidProfile indicates a profile without a user id.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrUserRequired is returned by per-user operations called without a user id.
	ErrUserRequired = errors.New("user id required")
)
