// Package sequence_repo provides the PostgreSQL implementation of the
// document sequence store. Locking and allocation are each a single SQL
// statement, so the check and the write are indivisible at the database:
// concurrent callers serialize on the (tenant_id, document_type) row.
package sequence_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"heshbon/internal/core/apperror"
	"heshbon/internal/domain/sequence"
	"heshbon/internal/infrastructure/storage/postgres"
)

// SequenceRepo implements sequence.Repository.
type SequenceRepo struct {
	txManager *postgres.TxManager
}

// Ensure compile-time interface compliance.
var _ sequence.Repository = (*SequenceRepo)(nil)

// New creates a new sequence repository.
func New(txManager *postgres.TxManager) *SequenceRepo {
	return &SequenceRepo{txManager: txManager}
}

// Lock performs the conditional insert that fixes the starting number.
// The WHERE guard on the conflict branch means an existing locked row is
// never overwritten: the statement then returns no rows and the caller
// gets AlreadyLocked.
func (r *SequenceRepo) Lock(ctx context.Context, seq *sequence.Sequence) error {
	querier := r.txManager.GetQuerier(ctx)

	err := querier.QueryRow(ctx, `
        INSERT INTO doc_sequences
            (tenant_id, document_type, locked, starting_number, current_number, prefix, locked_at, locked_by)
        VALUES ($1, $2, TRUE, $3, NULL, $4, $5, $6)
        ON CONFLICT (tenant_id, document_type) DO UPDATE
        SET locked          = TRUE,
            starting_number = EXCLUDED.starting_number,
            current_number  = NULL,
            prefix          = EXCLUDED.prefix,
            locked_at       = EXCLUDED.locked_at,
            locked_by       = EXCLUDED.locked_by
        WHERE NOT doc_sequences.locked
        RETURNING locked_at
	`, seq.TenantID, seq.DocumentType, seq.StartingNumber, seq.Prefix, seq.LockedAt, seq.LockedBy).
		Scan(&seq.LockedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sequence.NewAlreadyLocked(seq.TenantID, seq.DocumentType)
		}
		return mapStoreError("lock sequence", err)
	}
	return nil
}

// IncrementAndGet advances the counter of a locked sequence in one
// statement. The row lock taken by UPDATE serializes concurrent callers;
// COALESCE makes the first allocation produce the starting number.
func (r *SequenceRepo) IncrementAndGet(ctx context.Context, tenantID string, docType sequence.DocumentType) (*sequence.Allocation, error) {
	querier := r.txManager.GetQuerier(ctx)

	var alloc sequence.Allocation
	err := querier.QueryRow(ctx, `
        UPDATE doc_sequences
        SET current_number = COALESCE(current_number + 1, starting_number),
            updated_at     = now()
        WHERE tenant_id = $1 AND document_type = $2 AND locked
        RETURNING current_number, prefix
	`, tenantID, docType).Scan(&alloc.Number, &alloc.Prefix)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sequence.NewNotLocked(tenantID, docType)
		}
		return nil, mapStoreError("allocate number", err)
	}
	return &alloc, nil
}

// Get reads the sequence row; a missing row means still unlocked.
func (r *SequenceRepo) Get(ctx context.Context, tenantID string, docType sequence.DocumentType) (*sequence.Sequence, error) {
	querier := r.txManager.GetQuerier(ctx)

	var seq sequence.Sequence
	err := pgxscan.Get(ctx, querier, &seq, `
        SELECT tenant_id, document_type, locked, starting_number, current_number, prefix, locked_at, locked_by
        FROM doc_sequences
        WHERE tenant_id = $1 AND document_type = $2
	`, tenantID, docType)

	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, mapStoreError("get sequence", err)
	}
	return &seq, nil
}

// mapStoreError classifies a PostgreSQL failure: transient conflicts become
// retryable ErrConflict, everything else surfaces as a store error.
func mapStoreError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03": // serialization failure, deadlock, lock not available
			return fmt.Errorf("%s: %w: %w", op, sequence.ErrConflict, err)
		}
	}
	return apperror.NewDatabase(fmt.Errorf("%s: %w", op, err))
}
