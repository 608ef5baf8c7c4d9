package documents

import (
	"context"
	"fmt"
	"time"

	appctx "heshbon/internal/core/context"
	"heshbon/internal/core/id"
	"heshbon/internal/core/tx"
	"heshbon/internal/domain/sequence"
	"heshbon/pkg/logger"
)

// Service provides business operations for billing documents. Finalization
// is the only path that consumes sequence numbers: it allocates the next
// number for the document's type, then persists the document with it.
//
// Allocation and persistence are deliberately NOT one transaction. The
// counter advance is permanent even if the document write fails, so a crash
// between the two leaves a recorded gap rather than ever risking a duplicate
// legal number.
type Service struct {
	repo      Repository
	allocator *sequence.Service
	auditor   Auditor // optional, best-effort
	txManager tx.Manager
}

// NewService creates a document service. auditor may be nil.
func NewService(repo Repository, allocator *sequence.Service, auditor Auditor, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		allocator: allocator,
		auditor:   auditor,
		txManager: txManager,
	}
}

// Create persists a new draft document. Drafts carry no number and may be
// edited freely.
func (s *Service) Create(ctx context.Context, doc *Document) error {
	if doc.CreatedBy == "" {
		doc.CreatedBy = appctx.GetUserID(ctx)
	}

	if err := doc.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, doc)
	})
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	logger.Info(ctx, "document draft created",
		"id", doc.ID,
		"document_type", doc.Type)

	return nil
}

// Update modifies a draft document.
func (s *Service) Update(ctx context.Context, doc *Document) error {
	if err := doc.CanModify(); err != nil {
		return err
	}
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	doc.UpdatedAt = time.Now().UTC()
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, doc)
	})
}

// GetByID retrieves a document.
func (s *Service) GetByID(ctx context.Context, tenantID string, docID id.ID) (*Document, error) {
	return s.repo.GetByID(ctx, tenantID, docID)
}

// List returns documents matching the filter.
func (s *Service) List(ctx context.Context, tenantID string, f Filter) ([]*Document, int64, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	return s.repo.List(ctx, tenantID, f)
}

// Finalize turns a draft into an issued legal document: it allocates the
// next sequence number for the document's type and persists the document
// with it. Fails with SequenceNotLocked when the tenant has not yet chosen
// a starting number for this type.
func (s *Service) Finalize(ctx context.Context, tenantID string, docID id.ID) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}

	if err := doc.CanModify(); err != nil {
		return nil, err
	}
	if err := doc.ValidateForFinalize(ctx); err != nil {
		return nil, err
	}

	alloc, err := s.allocator.AllocateNext(ctx, tenantID, doc.Type)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc.Number = &alloc.Number
	doc.NumberPrefix = alloc.Prefix
	doc.Status = StatusFinalized
	doc.IssuedAt = &now
	doc.UpdatedAt = now

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, doc)
	})
	if err != nil {
		// The allocated number is already committed and will never be
		// reissued; this document's number is now a recorded gap.
		logger.Error(ctx, "document persistence failed after allocation",
			"id", doc.ID,
			"document_type", doc.Type,
			"number", alloc.Number,
			"error", err)
		return nil, fmt.Errorf("finalize document: %w", err)
	}

	if s.auditor != nil {
		if err := s.auditor.RecordFinalize(ctx, tenantID, doc.ID, doc); err != nil {
			logger.Warn(ctx, "document finalize audit failed",
				"id", doc.ID,
				"error", err)
		}
	}

	logger.Info(ctx, "document finalized",
		"id", doc.ID,
		"document_type", doc.Type,
		"number", doc.DisplayNumber())

	return doc, nil
}

// HasFinalizedDocuments implements sequence.DocumentChecker.
func (s *Service) HasFinalizedDocuments(ctx context.Context, tenantID string, docType sequence.DocumentType) (bool, error) {
	n, err := s.repo.CountFinalized(ctx, tenantID, docType)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ensure compile-time interface compliance.
var _ sequence.DocumentChecker = (*Service)(nil)
