package domain

import "errors"

var (
	// ErrInvalidInput is returned when a form event carries malformed data,
	// such as a non-numeric amount. The session re-prompts the same step.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyExists is returned when a catalog entry or admin grant
	// collides with an existing row. Recoverable, surfaced to the admin.
	ErrAlreadyExists = errors.New("entry already exists")

	// ErrPermissionDenied is returned when a non-admin invokes an
	// admin-only operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAlreadyResolved is returned when a decision arrives for an
	// approval that was already resolved or has expired. Callers render
	// this as a no-op.
	ErrAlreadyResolved = errors.New("approval already resolved")

	// ErrNoReachableAdmin is returned when an approval fan-out reached
	// zero admins. The request stays pending for manual follow-up.
	ErrNoReachableAdmin = errors.New("no reachable admin")

	// ErrSinkUnavailable is returned when the ledger sink rejected a
	// write. The draft is preserved so the actor can retry.
	ErrSinkUnavailable = errors.New("ledger sink unavailable")

	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
)
