package store

import "errors"

var (
	// ErrDuplicateRelation means a create hit the uniqueness constraint for
	// its kind. Idempotent flows may treat it as already-satisfied.
	ErrDuplicateRelation = errors.New("relation already exists")

	// ErrStorageUnavailable wraps transient Cassandra failures. Retry policy
	// belongs to the transport layer, not here.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidIdentity means a subject or object identifier is not a valid
	// UUID. Rejected before any store call is made.
	ErrInvalidIdentity = errors.New("invalid entity identifier")
)
