package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"heshbon/internal/domain/documents"
	"heshbon/internal/domain/sequence"
)

// --- Request DTOs ---

// CreateDocumentRequest creates a draft document.
type CreateDocumentRequest struct {
	DocumentType  string                `json:"documentType" binding:"required"`
	CustomerName  string                `json:"customerName" binding:"required"`
	CustomerTaxID *string               `json:"customerTaxId,omitempty"`
	Description   string                `json:"description,omitempty"`
	Currency      string                `json:"currency,omitempty"`
	Lines         []DocumentLineRequest `json:"lines,omitempty"`
}

// DocumentLineRequest represents a line in create/update requests.
// Decimal fields are strings to avoid float rounding on the wire.
type DocumentLineRequest struct {
	Description string `json:"description" binding:"required"`
	Quantity    string `json:"quantity" binding:"required"`
	UnitPrice   string `json:"unitPrice" binding:"required"`
	VATRate     string `json:"vatRate,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreateDocumentRequest) ToEntity(tenantID string) (*documents.Document, error) {
	docType, err := sequence.ParseDocumentType(r.DocumentType)
	if err != nil {
		return nil, err
	}

	doc := documents.NewDocument(tenantID, docType, r.CustomerName)
	doc.CustomerTaxID = r.CustomerTaxID
	doc.Description = r.Description
	if r.Currency != "" {
		doc.Currency = r.Currency
	}

	for _, line := range r.Lines {
		quantity, err := decimal.NewFromString(line.Quantity)
		if err != nil {
			return nil, err
		}
		unitPrice, err := decimal.NewFromString(line.UnitPrice)
		if err != nil {
			return nil, err
		}
		vatRate := decimal.Zero
		if line.VATRate != "" {
			vatRate, err = decimal.NewFromString(line.VATRate)
			if err != nil {
				return nil, err
			}
		}
		doc.AddLine(line.Description, quantity, unitPrice, vatRate)
	}

	return doc, nil
}

// UpdateDocumentRequest edits a draft. Finalized documents reject any update.
type UpdateDocumentRequest struct {
	CustomerName  *string               `json:"customerName,omitempty"`
	CustomerTaxID *string               `json:"customerTaxId,omitempty"`
	Description   *string               `json:"description,omitempty"`
	Currency      *string               `json:"currency,omitempty"`
	Lines         []DocumentLineRequest `json:"lines,omitempty"`
	Version       int                   `json:"version" binding:"required,min=1"`
}

// ApplyTo applies updates to an existing draft.
func (r *UpdateDocumentRequest) ApplyTo(doc *documents.Document) error {
	if r.CustomerName != nil {
		doc.CustomerName = *r.CustomerName
	}
	if r.CustomerTaxID != nil {
		doc.CustomerTaxID = r.CustomerTaxID
	}
	if r.Description != nil {
		doc.Description = *r.Description
	}
	if r.Currency != nil {
		doc.Currency = *r.Currency
	}
	if r.Lines != nil {
		doc.Lines = doc.Lines[:0]
		for _, line := range r.Lines {
			quantity, err := decimal.NewFromString(line.Quantity)
			if err != nil {
				return err
			}
			unitPrice, err := decimal.NewFromString(line.UnitPrice)
			if err != nil {
				return err
			}
			vatRate := decimal.Zero
			if line.VATRate != "" {
				vatRate, err = decimal.NewFromString(line.VATRate)
				if err != nil {
					return err
				}
			}
			doc.AddLine(line.Description, quantity, unitPrice, vatRate)
		}
	}
	doc.Version = r.Version
	return nil
}

// --- Response DTOs ---

// DocumentResponse represents a billing document.
type DocumentResponse struct {
	ID            string                 `json:"id"`
	DocumentType  string                 `json:"documentType"`
	Status        string                 `json:"status"`
	Number        *int64                 `json:"number,omitempty"`
	DisplayNumber string                 `json:"displayNumber,omitempty"`
	CustomerName  string                 `json:"customerName"`
	CustomerTaxID *string                `json:"customerTaxId,omitempty"`
	Description   string                 `json:"description,omitempty"`
	Currency      string                 `json:"currency"`
	TotalAmount   string                 `json:"totalAmount"`
	VATAmount     string                 `json:"vatAmount"`
	IssuedAt      *time.Time             `json:"issuedAt,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
	Version       int                    `json:"version"`
	Lines         []DocumentLineResponse `json:"lines"`
}

// DocumentLineResponse represents a document line.
type DocumentLineResponse struct {
	LineNo      int    `json:"lineNo"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	VATRate     string `json:"vatRate"`
	VATAmount   string `json:"vatAmount"`
	Amount      string `json:"amount"`
}

// FromDocument converts a domain document to response.
func FromDocument(d *documents.Document) DocumentResponse {
	lines := make([]DocumentLineResponse, 0, len(d.Lines))
	for _, line := range d.Lines {
		lines = append(lines, DocumentLineResponse{
			LineNo:      line.LineNo,
			Description: line.Description,
			Quantity:    line.Quantity.String(),
			UnitPrice:   line.UnitPrice.String(),
			VATRate:     line.VATRate.String(),
			VATAmount:   line.VATAmount.String(),
			Amount:      line.Amount.String(),
		})
	}

	return DocumentResponse{
		ID:            d.ID.String(),
		DocumentType:  string(d.Type),
		Status:        string(d.Status),
		Number:        d.Number,
		DisplayNumber: d.DisplayNumber(),
		CustomerName:  d.CustomerName,
		CustomerTaxID: d.CustomerTaxID,
		Description:   d.Description,
		Currency:      d.Currency,
		TotalAmount:   d.TotalAmount.StringFixed(2),
		VATAmount:     d.VATAmount.StringFixed(2),
		IssuedAt:      d.IssuedAt,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		Version:       d.Version,
		Lines:         lines,
	}
}
