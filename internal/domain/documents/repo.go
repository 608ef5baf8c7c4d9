package documents

import (
	"context"

	"heshbon/internal/core/id"
	"heshbon/internal/domain/sequence"
)

// Filter narrows document listings.
type Filter struct {
	Type   *sequence.DocumentType
	Status *Status
	Search string // customer name substring
	Limit  int
	Offset int
}

// Repository defines the interface for document persistence.
// All queries are tenant-scoped; a document is never visible outside its
// tenant.
type Repository interface {
	// Create inserts a draft document with its lines.
	Create(ctx context.Context, doc *Document) error

	// Update modifies a document with optimistic locking on Version.
	Update(ctx context.Context, doc *Document) error

	// GetByID retrieves a document with lines.
	GetByID(ctx context.Context, tenantID string, docID id.ID) (*Document, error)

	// List returns documents matching the filter plus the total count.
	List(ctx context.Context, tenantID string, f Filter) ([]*Document, int64, error)

	// CountFinalized counts finalized documents of a type for a tenant.
	CountFinalized(ctx context.Context, tenantID string, docType sequence.DocumentType) (int64, error)
}

// Auditor records immutable finalization events. The legal number a
// document received must stay traceable even if the document row is later
// inspected under dispute.
type Auditor interface {
	RecordFinalize(ctx context.Context, tenantID string, docID id.ID, payload any) error
}
