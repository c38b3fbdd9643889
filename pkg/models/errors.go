package models

import "errors"

// Error taxonomy shared across packages. Handlers map these onto the
// HTTP envelope; everything else wraps them with %w.
var (
	// ErrNotFound covers unresolved thread ids and out-of-scope access.
	ErrNotFound = errors.New("not found")
	// ErrValidation covers malformed or missing required input.
	ErrValidation = errors.New("validation error")
	// ErrExternalTimeout marks an external connector or AI call that
	// exceeded its deadline.
	ErrExternalTimeout = errors.New("external call timed out")
	// ErrDeliveryFailed marks an outbound send that exhausted retries.
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrArchived is returned by the dispatcher when replies to archived
	// threads are rejected by policy.
	ErrArchived = errors.New("thread is archived")
	// ErrConflict signals that a concurrent mutation invalidated the
	// caller's expected version.
	ErrConflict = errors.New("version conflict")
)
