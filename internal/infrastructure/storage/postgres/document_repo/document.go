// Package document_repo provides the PostgreSQL implementation of document
// persistence.
package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"heshbon/internal/core/apperror"
	"heshbon/internal/core/id"
	"heshbon/internal/domain/documents"
	"heshbon/internal/domain/sequence"
	"heshbon/internal/infrastructure/storage/postgres"
)

const (
	documentTable = "doc_documents"
	lineTable     = "doc_document_lines"
)

var documentColumns = []string{
	"id", "tenant_id", "document_type", "status",
	"number", "number_prefix",
	"customer_name", "customer_tax_id", "description", "currency",
	"total_amount", "vat_amount",
	"issued_at", "created_by", "created_at", "updated_at", "version",
}

// copyThreshold is the line count above which inserts switch to COPY.
const copyThreshold = 20

// DocumentRepo implements documents.Repository.
type DocumentRepo struct {
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
}

// Ensure compile-time interface compliance.
var _ documents.Repository = (*DocumentRepo)(nil)

// New creates a new document repository.
func New(txManager *postgres.TxManager) *DocumentRepo {
	return &DocumentRepo{
		txManager: txManager,
		inserter:  postgres.NewBatchInserter(txManager),
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *DocumentRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts a draft document with its lines.
func (r *DocumentRepo) Create(ctx context.Context, doc *documents.Document) error {
	q := r.Builder().
		Insert(documentTable).
		Columns(documentColumns...).
		Values(
			doc.ID, doc.TenantID, doc.Type, doc.Status,
			doc.Number, doc.NumberPrefix,
			doc.CustomerName, doc.CustomerTaxID, doc.Description, doc.Currency,
			doc.TotalAmount, doc.VATAmount,
			doc.IssuedAt, doc.CreatedBy, doc.CreatedAt, doc.UpdatedAt, doc.Version,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err = querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", documentTable, err)
	}

	return r.saveLines(ctx, doc.ID, doc.Lines)
}

// Update modifies an existing document with optimistic locking.
func (r *DocumentRepo) Update(ctx context.Context, doc *documents.Document) error {
	q := r.Builder().
		Update(documentTable).
		Set("status", doc.Status).
		Set("number", doc.Number).
		Set("number_prefix", doc.NumberPrefix).
		Set("customer_name", doc.CustomerName).
		Set("customer_tax_id", doc.CustomerTaxID).
		Set("description", doc.Description).
		Set("currency", doc.Currency).
		Set("total_amount", doc.TotalAmount).
		Set("vat_amount", doc.VATAmount).
		Set("issued_at", doc.IssuedAt).
		Set("updated_at", time.Now().UTC()).
		Set("version", doc.Version+1).
		Where(squirrel.Eq{
			"id":        doc.ID,
			"tenant_id": doc.TenantID,
			"version":   doc.Version,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", documentTable, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConflict("document was modified by another request").
			WithDetail("id", doc.ID.String())
	}
	doc.Version++

	if err := r.deleteLines(ctx, doc.ID); err != nil {
		return err
	}
	return r.saveLines(ctx, doc.ID, doc.Lines)
}

// GetByID retrieves a document with its lines.
func (r *DocumentRepo) GetByID(ctx context.Context, tenantID string, docID id.ID) (*documents.Document, error) {
	q := r.Builder().
		Select(documentColumns...).
		From(documentTable).
		Where(squirrel.Eq{"id": docID, "tenant_id": tenantID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var doc documents.Document
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("document", docID)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	lines, err := r.getLines(ctx, docID)
	if err != nil {
		return nil, err
	}
	doc.Lines = lines

	return &doc, nil
}

// List returns documents matching the filter plus total count.
func (r *DocumentRepo) List(ctx context.Context, tenantID string, f documents.Filter) ([]*documents.Document, int64, error) {
	base := r.Builder().
		Select(documentColumns...).
		From(documentTable).
		Where(squirrel.Eq{"tenant_id": tenantID})

	countQ := r.Builder().
		Select("COUNT(*)").
		From(documentTable).
		Where(squirrel.Eq{"tenant_id": tenantID})

	if f.Type != nil {
		base = base.Where(squirrel.Eq{"document_type": *f.Type})
		countQ = countQ.Where(squirrel.Eq{"document_type": *f.Type})
	}
	if f.Status != nil {
		base = base.Where(squirrel.Eq{"status": *f.Status})
		countQ = countQ.Where(squirrel.Eq{"status": *f.Status})
	}
	if f.Search != "" {
		like := squirrel.ILike{"customer_name": "%" + f.Search + "%"}
		base = base.Where(like)
		countQ = countQ.Where(like)
	}

	base = base.OrderBy("created_at DESC")
	if f.Limit > 0 {
		base = base.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		base = base.Offset(uint64(f.Offset))
	}

	querier := r.txManager.GetQuerier(ctx)

	sql, args, err := base.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}
	var docs []*documents.Document
	if err := pgxscan.Select(ctx, querier, &docs, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}

	sql, args, err = countQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int64
	if err := querier.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	return docs, total, nil
}

// CountFinalized counts finalized documents of a type for a tenant.
func (r *DocumentRepo) CountFinalized(ctx context.Context, tenantID string, docType sequence.DocumentType) (int64, error) {
	q := r.Builder().
		Select("COUNT(*)").
		From(documentTable).
		Where(squirrel.Eq{
			"tenant_id":     tenantID,
			"document_type": docType,
			"status":        documents.StatusFinalized,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var n int64
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count finalized: %w", err)
	}
	return n, nil
}

var lineColumns = []string{
	"line_id", "document_id", "line_no", "description",
	"quantity", "unit_price", "vat_rate", "vat_amount", "amount",
}

func (r *DocumentRepo) saveLines(ctx context.Context, docID id.ID, lines []documents.Line) error {
	if len(lines) == 0 {
		return nil
	}

	// COPY beats multi-VALUES once documents carry many lines.
	if len(lines) >= copyThreshold {
		rows := make([][]any, 0, len(lines))
		for _, line := range lines {
			rows = append(rows, []any{
				line.LineID, docID, line.LineNo, line.Description,
				line.Quantity, line.UnitPrice, line.VATRate, line.VATAmount, line.Amount,
			})
		}
		if _, err := r.inserter.CopyFromSlice(ctx, lineTable, lineColumns, rows); err != nil {
			return fmt.Errorf("copy %s: %w", lineTable, err)
		}
		return nil
	}

	q := r.Builder().
		Insert(lineTable).
		Columns(lineColumns...)
	for _, line := range lines {
		q = q.Values(line.LineID, docID, line.LineNo, line.Description, line.Quantity, line.UnitPrice, line.VATRate, line.VATAmount, line.Amount)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build lines insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", lineTable, err)
	}
	return nil
}

func (r *DocumentRepo) deleteLines(ctx context.Context, docID id.ID) error {
	q := r.Builder().
		Delete(lineTable).
		Where(squirrel.Eq{"document_id": docID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build lines delete: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete %s: %w", lineTable, err)
	}
	return nil
}

func (r *DocumentRepo) getLines(ctx context.Context, docID id.ID) ([]documents.Line, error) {
	q := r.Builder().
		Select("line_id", "line_no", "description", "quantity", "unit_price", "vat_rate", "vat_amount", "amount").
		From(lineTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}

	var lines []documents.Line
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	return lines, nil
}
