package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "heshbon/internal/core/context"
	"heshbon/internal/core/id"
	"heshbon/internal/domain/documents"
	"heshbon/internal/domain/sequence"
)

// AuditAction represents the type of audited operation.
type AuditAction string

const (
	AuditActionLock     AuditAction = "sequence_lock"
	AuditActionFinalize AuditAction = "document_finalize"
)

// CompressionAlgo specifies the compression algorithm used for payloads.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntry is one immutable record in the audit trail. Lock and
// finalization events are append-only; the regulator may ask for the full
// numbering history of a tenant years later.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	TenantID          string          `db:"tenant_id"`
	EntityType        string          `db:"entity_type"`
	EntityID          string          `db:"entity_id"`
	Action            AuditAction     `db:"action"`
	UserID            string          `db:"user_id"`
	Payload           json.RawMessage `db:"payload"`
	PayloadCompressed []byte          `db:"payload_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditService provides append-only audit logging.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	compressThreshold int // bytes
}

// Ensure compile-time interface compliance.
var (
	_ sequence.Auditor  = (*AuditService)(nil)
	_ documents.Auditor = (*AuditService)(nil)
)

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		compressThreshold: 10 * 1024,
	}, nil
}

// Log records an audit entry.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if entry.UserID == "" {
		entry.UserID = appctx.GetUserID(ctx)
	}
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	// Compress large payloads
	entry.CompressionAlgo = CompressionNone
	if len(entry.Payload) > s.compressThreshold {
		entry.PayloadCompressed = s.encoder.EncodeAll(entry.Payload, nil)
		entry.Payload = nil
		entry.CompressionAlgo = CompressionZstd
	}

	sql := `
		INSERT INTO sys_audit (
			id, tenant_id, entity_type, entity_id, action, user_id,
			payload, payload_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	querier := s.txManager.GetQuerier(ctx)
	_, err := querier.Exec(ctx, sql,
		entry.ID, entry.TenantID, entry.EntityType, entry.EntityID,
		entry.Action, entry.UserID,
		entry.Payload, entry.PayloadCompressed, entry.CompressionAlgo,
		entry.CreatedAt,
	)
	return err
}

// RecordLock implements sequence.Auditor.
func (s *AuditService) RecordLock(ctx context.Context, seq *sequence.Sequence) error {
	payload, err := json.Marshal(seq)
	if err != nil {
		return fmt.Errorf("marshal sequence: %w", err)
	}

	return s.Log(ctx, AuditEntry{
		TenantID:   seq.TenantID,
		EntityType: "sequence",
		EntityID:   string(seq.DocumentType),
		Action:     AuditActionLock,
		Payload:    payload,
	})
}

// RecordFinalize appends a finalization event for a document.
func (s *AuditService) RecordFinalize(ctx context.Context, tenantID string, docID id.ID, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	return s.Log(ctx, AuditEntry{
		TenantID:   tenantID,
		EntityType: "document",
		EntityID:   docID.String(),
		Action:     AuditActionFinalize,
		Payload:    raw,
	})
}
