// Package documents provides the regulated document domain: receipts, tax
// invoices, combined invoice-receipts and credit notes. A document starts as
// a draft and becomes immutable at finalization, when it receives its legal
// number from the sequence engine.
package documents

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"heshbon/internal/core/apperror"
	"heshbon/internal/core/id"
	"heshbon/internal/core/types"
	"heshbon/internal/domain/sequence"
)

// Status is the document lifecycle state.
type Status string

const (
	// StatusDraft documents are editable and carry no legal number.
	StatusDraft Status = "draft"

	// StatusFinalized documents carry an allocated sequence number and are
	// immutable. Corrections are issued as credit notes, never edits.
	StatusFinalized Status = "finalized"
)

// Document represents a billing document issued by a tenant to a customer.
type Document struct {
	ID       id.ID                 `db:"id" json:"id"`
	TenantID string                `db:"tenant_id" json:"tenantId"`
	Type     sequence.DocumentType `db:"document_type" json:"documentType"`
	Status   Status                `db:"status" json:"status"`

	// Number and NumberPrefix are set at finalization from the sequence
	// engine and never change afterwards.
	Number       *int64  `db:"number" json:"number,omitempty"`
	NumberPrefix *string `db:"number_prefix" json:"numberPrefix,omitempty"`

	CustomerName  string  `db:"customer_name" json:"customerName"`
	CustomerTaxID *string `db:"customer_tax_id" json:"customerTaxId,omitempty"`
	Description   string  `db:"description" json:"description,omitempty"`
	Currency      string  `db:"currency" json:"currency"`

	// Totals (calculated from lines)
	TotalAmount types.Money `db:"total_amount" json:"totalAmount"`
	VATAmount   types.Money `db:"vat_amount" json:"vatAmount"`

	IssuedAt  *time.Time `db:"issued_at" json:"issuedAt,omitempty"`
	CreatedBy string     `db:"created_by" json:"createdBy"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`

	// Version for optimistic locking on draft edits.
	Version int `db:"version" json:"version"`

	// Table part: document lines
	Lines []Line `db:"-" json:"lines"`
}

// Line represents a billed item on a document.
type Line struct {
	LineID      id.ID           `db:"line_id" json:"lineId"`
	LineNo      int             `db:"line_no" json:"lineNo"`
	Description string          `db:"description" json:"description"`
	Quantity    decimal.Decimal `db:"quantity" json:"quantity"`
	UnitPrice   types.Money     `db:"unit_price" json:"unitPrice"`
	VATRate     decimal.Decimal `db:"vat_rate" json:"vatRate"` // percent, e.g. 17
	VATAmount   types.Money     `db:"vat_amount" json:"vatAmount"`
	Amount      types.Money     `db:"amount" json:"amount"` // total with VAT
}

// NewDocument creates a draft document.
func NewDocument(tenantID string, docType sequence.DocumentType, customerName string) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:           id.New(),
		TenantID:     tenantID,
		Type:         docType,
		Status:       StatusDraft,
		CustomerName: customerName,
		Currency:     "ILS",
		TotalAmount:  decimal.Zero,
		VATAmount:    decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
		Lines:        make([]Line, 0),
	}
}

// AddLine appends a line and recalculates totals.
func (d *Document) AddLine(description string, quantity decimal.Decimal, unitPrice types.Money, vatRate decimal.Decimal) {
	base := unitPrice.Mul(quantity)
	vat := base.Mul(vatRate).Div(decimal.NewFromInt(100)).Round(2)

	line := Line{
		LineID:      id.New(),
		LineNo:      len(d.Lines) + 1,
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		VATRate:     vatRate,
		VATAmount:   vat,
		Amount:      base.Add(vat),
	}

	d.Lines = append(d.Lines, line)
	d.recalculateTotals()
}

// recalculateTotals updates document totals from lines.
func (d *Document) recalculateTotals() {
	total := decimal.Zero
	vat := decimal.Zero
	for _, line := range d.Lines {
		total = total.Add(line.Amount)
		vat = vat.Add(line.VATAmount)
	}
	d.TotalAmount = total
	d.VATAmount = vat
}

// DisplayNumber renders the legal document number, empty for drafts.
func (d *Document) DisplayNumber() string {
	if d.Number == nil {
		return ""
	}
	return sequence.FormatNumber(d.NumberPrefix, *d.Number)
}

// IsFinalized reports whether the document carries a legal number.
func (d *Document) IsFinalized() bool {
	return d.Status == StatusFinalized
}

// CanModify returns an error when the document is no longer editable.
func (d *Document) CanModify() error {
	if d.IsFinalized() {
		return apperror.NewBusinessRule(apperror.CodeDocumentFinalized,
			"finalized documents are immutable").
			WithDetail("id", d.ID.String()).
			WithDetail("number", d.DisplayNumber())
	}
	return nil
}

// Validate checks the document is well-formed.
func (d *Document) Validate(ctx context.Context) error {
	if d.TenantID == "" {
		return apperror.NewValidation("tenant is required").
			WithDetail("field", "tenantId")
	}
	if !d.Type.Valid() {
		return apperror.NewValidation("unknown document type").
			WithDetail("field", "documentType").
			WithDetail("value", string(d.Type))
	}
	if d.CustomerName == "" {
		return apperror.NewValidation("customer name is required").
			WithDetail("field", "customerName")
	}
	if d.Currency == "" {
		return apperror.NewValidation("currency is required").
			WithDetail("field", "currency")
	}

	for i, line := range d.Lines {
		if line.Description == "" {
			return apperror.NewValidation("line description is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if line.UnitPrice.IsNegative() {
			return apperror.NewValidation("unit price must not be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

// ValidateForFinalize applies the stricter checks required before a legal
// number is allocated.
func (d *Document) ValidateForFinalize(ctx context.Context) error {
	if err := d.Validate(ctx); err != nil {
		return err
	}
	if len(d.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}
	return nil
}
