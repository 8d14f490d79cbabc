package domain

import "errors"

// Sentinel errors for the messaging subsystem. Handlers map these to HTTP
// status codes; everything else is a store failure and surfaces as 500.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotFound         = errors.New("resource not found")
	ErrNotParticipant   = errors.New("not a participant in this conversation")
	ErrEmptyContent     = errors.New("message content cannot be empty")
	ErrNoRecipients     = errors.New("at least one recipient is required")
	ErrInvalidInput     = errors.New("invalid input")
)
