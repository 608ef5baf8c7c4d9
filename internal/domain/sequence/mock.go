package sequence

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory Repository for unit tests and local
// development. Mutations hold a single mutex, so its atomicity matches the
// contract and concurrency tests against it are meaningful.
//
// The hook fields, when set, run before the corresponding operation while
// the lock is NOT held; returning a non-nil error aborts the operation with
// that error. Use them to inject store failures and conflicts.
type MemoryRepository struct {
	mu   sync.Mutex
	seqs map[memKey]*Sequence

	LockHook      func(ctx context.Context, seq *Sequence) error
	IncrementHook func(ctx context.Context, tenantID string, docType DocumentType) error
	GetHook       func(ctx context.Context, tenantID string, docType DocumentType) error
}

type memKey struct {
	tenantID string
	docType  DocumentType
}

// Ensure compile-time interface compliance.
var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{seqs: make(map[memKey]*Sequence)}
}

// Lock implements Repository.
func (r *MemoryRepository) Lock(ctx context.Context, seq *Sequence) error {
	if r.LockHook != nil {
		if err := r.LockHook(ctx, seq); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := memKey{seq.TenantID, seq.DocumentType}
	if _, exists := r.seqs[key]; exists {
		return NewAlreadyLocked(seq.TenantID, seq.DocumentType)
	}

	stored := *seq
	r.seqs[key] = &stored
	return nil
}

// IncrementAndGet implements Repository.
func (r *MemoryRepository) IncrementAndGet(ctx context.Context, tenantID string, docType DocumentType) (*Allocation, error) {
	if r.IncrementHook != nil {
		if err := r.IncrementHook(ctx, tenantID, docType); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seq, exists := r.seqs[memKey{tenantID, docType}]
	if !exists || !seq.Locked {
		return nil, NewNotLocked(tenantID, docType)
	}

	next := seq.NextNumber()
	seq.CurrentNumber = &next
	return &Allocation{Number: next, Prefix: seq.Prefix}, nil
}

// Get implements Repository.
func (r *MemoryRepository) Get(ctx context.Context, tenantID string, docType DocumentType) (*Sequence, error) {
	if r.GetHook != nil {
		if err := r.GetHook(ctx, tenantID, docType); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seq, exists := r.seqs[memKey{tenantID, docType}]
	if !exists {
		return nil, nil
	}

	copied := *seq
	if seq.CurrentNumber != nil {
		cur := *seq.CurrentNumber
		copied.CurrentNumber = &cur
	}
	return &copied, nil
}
