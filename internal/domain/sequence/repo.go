package sequence

import (
	"context"
)

// Repository is the durable keyed store contract for sequence state.
// Every method must be atomic at the store: the check and the write of
// Lock and IncrementAndGet are indivisible, never a read followed by a
// separate conditional write. Requests may run in separate processes, so
// the store's conditional-write semantics are the only coordination point.
type Repository interface {
	// Lock persists seq with a conditional insert keyed by
	// (tenant, document type). Exactly one concurrent caller wins;
	// losers receive an AlreadyLocked error and the winner's row is
	// left untouched.
	Lock(ctx context.Context, seq *Sequence) error

	// IncrementAndGet advances the counter of a locked sequence by one in
	// a single atomic operation and returns the allocated number with the
	// sequence prefix. The first allocation after locking produces the
	// starting number. Returns a SequenceNotLocked error when no lock row
	// exists, and wraps transient conflicts with ErrConflict.
	IncrementAndGet(ctx context.Context, tenantID string, docType DocumentType) (*Allocation, error)

	// Get returns the sequence row, or (nil, nil) when none exists yet.
	// Absence of a row means the sequence is still unlocked.
	Get(ctx context.Context, tenantID string, docType DocumentType) (*Sequence, error)
}

// DocumentChecker answers whether any finalized document of a type exists
// for a tenant. Owned by the surrounding application's document store; used
// only by the query service as a defensive double-check.
type DocumentChecker interface {
	HasFinalizedDocuments(ctx context.Context, tenantID string, docType DocumentType) (bool, error)
}

// Auditor records immutable audit entries for sequence state transitions.
type Auditor interface {
	RecordLock(ctx context.Context, seq *Sequence) error
}
