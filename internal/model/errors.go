package model

import "errors"

// Common errors used across the application
var (
	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Session errors
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionFull        = errors.New("session already has two players")
	ErrSelfJoin           = errors.New("cannot join your own session")
	ErrSessionNotActive   = errors.New("session is not in progress")
	ErrNotParticipant     = errors.New("user is not a participant in this session")
	ErrConflictingVerdict = errors.New("session already completed with a different verdict")

	// Store errors
	ErrStoreUnavailable = errors.New("session store unavailable")
)
