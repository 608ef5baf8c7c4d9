package sequence

import (
	"context"

	"heshbon/pkg/logger"
)

// QueryService is the read-only status facade for presentation layers.
// It never mutates sequence state and takes no lock that could stall
// allocation. Missing rows are reported as unlocked, not as errors.
type QueryService struct {
	repo Repository
	docs DocumentChecker
}

// NewQueryService creates a query service. docs may be nil, in which case
// HasIssuedDocuments falls back to the sequence's own counter.
func NewQueryService(repo Repository, docs DocumentChecker) *QueryService {
	return &QueryService{repo: repo, docs: docs}
}

// GetStatus reports the sequence state for UI decision-making: whether a
// "choose starting number" prompt should be shown, and what the next number
// will be. Store failures on the sequence read are propagated; the
// document-existence double-check is non-authoritative and degrades to the
// counter-derived value with a logged warning.
func (q *QueryService) GetStatus(ctx context.Context, tenantID string, docType DocumentType) (*Status, error) {
	if tenantID == "" {
		return nil, NewInvalidTenant()
	}
	if !docType.Valid() {
		_, err := ParseDocumentType(string(docType))
		return nil, err
	}

	seq, err := q.repo.Get(ctx, tenantID, docType)
	if err != nil {
		return nil, err
	}

	status := &Status{
		TenantID:     tenantID,
		DocumentType: docType,
	}

	if seq != nil && seq.Locked {
		status.Locked = true
		status.StartingNumber = &seq.StartingNumber
		status.CurrentNumber = seq.CurrentNumber
		next := seq.NextNumber()
		status.NextNumber = &next
		status.Prefix = seq.Prefix
	}

	status.HasIssuedDocuments = q.hasIssuedDocuments(ctx, tenantID, docType, seq)

	return status, nil
}

// hasIssuedDocuments asks the document store whether any finalized document
// exists. This guards against showing a number-selection prompt when
// documents already exist even if the lock row is somehow missing.
func (q *QueryService) hasIssuedDocuments(ctx context.Context, tenantID string, docType DocumentType, seq *Sequence) bool {
	fallback := seq != nil && seq.CurrentNumber != nil

	if q.docs == nil {
		return fallback
	}

	issued, err := q.docs.HasFinalizedDocuments(ctx, tenantID, docType)
	if err != nil {
		logger.Warn(ctx, "finalized document check failed, using sequence state",
			"tenant_id", tenantID,
			"document_type", docType,
			"error", err)
		return fallback
	}
	return issued
}
