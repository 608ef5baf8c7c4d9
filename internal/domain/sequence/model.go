// Package sequence provides the document sequence engine: per-(tenant,
// document type) numbering that is monotonically increasing, gapless under
// normal operation, and immutable once issued. A tenant chooses the starting
// number exactly once (locking), after which only forward allocation is
// possible.
package sequence

import (
	"fmt"
	"time"

	"heshbon/internal/core/apperror"
)

// DocumentType identifies a regulated document category. Each type carries
// its own independent numbering sequence per tenant.
type DocumentType string

const (
	TypeReceipt           DocumentType = "receipt"
	TypeTaxInvoice        DocumentType = "tax_invoice"
	TypeTaxInvoiceReceipt DocumentType = "tax_invoice_receipt"
	TypeCreditNote        DocumentType = "credit_note"
)

// DocumentTypes lists all known document types.
func DocumentTypes() []DocumentType {
	return []DocumentType{TypeReceipt, TypeTaxInvoice, TypeTaxInvoiceReceipt, TypeCreditNote}
}

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case TypeReceipt, TypeTaxInvoice, TypeTaxInvoiceReceipt, TypeCreditNote:
		return true
	}
	return false
}

// ParseDocumentType converts a string to a DocumentType with validation.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(s)
	if !t.Valid() {
		return "", apperror.NewValidation("unknown document type").
			WithDetail("field", "documentType").
			WithDetail("value", s)
	}
	return t, nil
}

// Sequence is the numbering state for one (tenant, document type) pair.
// Once Locked, StartingNumber, LockedAt and LockedBy never change and
// CurrentNumber only moves forward, one step per allocation.
type Sequence struct {
	TenantID     string       `db:"tenant_id" json:"tenantId"`
	DocumentType DocumentType `db:"document_type" json:"documentType"`

	// Locked reports whether the starting number has been fixed.
	// There is no transition back to unlocked.
	Locked bool `db:"locked" json:"locked"`

	// StartingNumber is the first number ever issuable; set once at lock time.
	StartingNumber int64 `db:"starting_number" json:"startingNumber"`

	// CurrentNumber is the most recently allocated number, nil until the
	// first allocation after locking.
	CurrentNumber *int64 `db:"current_number" json:"currentNumber,omitempty"`

	// Prefix is an optional cosmetic prefix for rendered document numbers.
	// It does not participate in numeric ordering.
	Prefix *string `db:"prefix" json:"prefix,omitempty"`

	LockedAt time.Time `db:"locked_at" json:"lockedAt"`
	LockedBy *string   `db:"locked_by" json:"lockedBy,omitempty"`
}

// NewSequence builds a locked sequence ready to be persisted by Repository.Lock.
func NewSequence(tenantID string, docType DocumentType, startingNumber int64, prefix, lockedBy *string) *Sequence {
	return &Sequence{
		TenantID:       tenantID,
		DocumentType:   docType,
		Locked:         true,
		StartingNumber: startingNumber,
		Prefix:         prefix,
		LockedAt:       time.Now().UTC(),
		LockedBy:       lockedBy,
	}
}

// NextNumber returns the number the next allocation would produce.
// Meaningful only for locked sequences.
func (s *Sequence) NextNumber() int64 {
	if s.CurrentNumber != nil {
		return *s.CurrentNumber + 1
	}
	return s.StartingNumber
}

// Validate checks the sequence is well-formed for locking.
func (s *Sequence) Validate() error {
	if s.TenantID == "" {
		return apperror.NewValidation("tenant is required").
			WithDetail("field", "tenantId")
	}
	if !s.DocumentType.Valid() {
		return apperror.NewValidation("unknown document type").
			WithDetail("field", "documentType").
			WithDetail("value", string(s.DocumentType))
	}
	if s.StartingNumber < 1 {
		return NewInvalidStartingNumber(s.StartingNumber)
	}
	return nil
}

// Allocation is the result of reserving the next sequence number.
type Allocation struct {
	Number int64   `json:"number"`
	Prefix *string `json:"prefix,omitempty"`
}

// DisplayNumber renders the allocation for presentation.
func (a *Allocation) DisplayNumber() string {
	return FormatNumber(a.Prefix, a.Number)
}

// Status is the read model served to presentation layers. NextNumber is
// derived, never stored; HasIssuedDocuments comes from the document store
// as a defensive double-check against a missing lock row.
type Status struct {
	TenantID           string       `json:"tenantId"`
	DocumentType       DocumentType `json:"documentType"`
	Locked             bool         `json:"locked"`
	StartingNumber     *int64       `json:"startingNumber"`
	CurrentNumber      *int64       `json:"currentNumber"`
	NextNumber         *int64       `json:"nextNumber"`
	Prefix             *string      `json:"prefix,omitempty"`
	HasIssuedDocuments bool         `json:"hasIssuedDocuments"`
}

// FormatNumber renders a document number with its cosmetic prefix.
// Formatting is presentation-only; ordering and uniqueness are purely numeric.
func FormatNumber(prefix *string, number int64) string {
	if prefix == nil || *prefix == "" {
		return fmt.Sprintf("%d", number)
	}
	return fmt.Sprintf("%s%d", *prefix, number)
}
