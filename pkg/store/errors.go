package store

import "errors"

// Sentinel errors shared by every store implementation. Core services wrap
// these with human-readable context and callers match with errors.Is.
var (
	// ErrNotFound means the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotOwner means the acting user lacks rights over the target.
	ErrNotOwner = errors.New("not the owner")

	// ErrInvalidState means the operation is not valid for the entity's
	// current status.
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrAlreadyResolved means the approval request was already actioned by
	// another resolver.
	ErrAlreadyResolved = errors.New("request already resolved")

	// ErrDuplicateRequest means a conflicting pending or queued approval
	// request already exists.
	ErrDuplicateRequest = errors.New("duplicate request")

	// ErrDuplicateAssignment means an assignment already exists for the
	// (user, shift, hour) slot.
	ErrDuplicateAssignment = errors.New("duplicate assignment")
)
