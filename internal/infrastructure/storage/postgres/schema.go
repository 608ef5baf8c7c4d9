package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL holds the idempotent schema statements executed at startup.
// The unique key on doc_sequences (tenant_id, document_type) is what the
// atomic lock and allocation statements race on.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS doc_sequences (
		tenant_id       TEXT        NOT NULL,
		document_type   TEXT        NOT NULL,
		locked          BOOLEAN     NOT NULL DEFAULT FALSE,
		starting_number BIGINT      NOT NULL,
		current_number  BIGINT,
		prefix          TEXT,
		locked_at       TIMESTAMPTZ,
		locked_by       TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (tenant_id, document_type),
		CHECK (starting_number >= 1),
		CHECK (current_number IS NULL OR current_number >= starting_number)
	)`,

	`CREATE TABLE IF NOT EXISTS doc_documents (
		id              UUID          PRIMARY KEY,
		tenant_id       TEXT          NOT NULL,
		document_type   TEXT          NOT NULL,
		status          TEXT          NOT NULL,
		number          BIGINT,
		number_prefix   TEXT,
		customer_name   TEXT          NOT NULL,
		customer_tax_id TEXT,
		description     TEXT          NOT NULL DEFAULT '',
		currency        TEXT          NOT NULL,
		total_amount    NUMERIC(18,2) NOT NULL DEFAULT 0,
		vat_amount      NUMERIC(18,2) NOT NULL DEFAULT 0,
		issued_at       TIMESTAMPTZ,
		created_by      TEXT          NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ   NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ   NOT NULL DEFAULT now(),
		version         INTEGER       NOT NULL DEFAULT 1
	)`,

	// A finalized document's number is unique within its tenant and type.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_doc_documents_number
		ON doc_documents (tenant_id, document_type, number)
		WHERE number IS NOT NULL`,

	`CREATE INDEX IF NOT EXISTS ix_doc_documents_tenant_status
		ON doc_documents (tenant_id, status)`,

	`CREATE TABLE IF NOT EXISTS doc_document_lines (
		line_id     UUID          PRIMARY KEY,
		document_id UUID          NOT NULL REFERENCES doc_documents(id) ON DELETE CASCADE,
		line_no     INTEGER       NOT NULL,
		description TEXT          NOT NULL,
		quantity    NUMERIC(18,3) NOT NULL,
		unit_price  NUMERIC(18,2) NOT NULL,
		vat_rate    NUMERIC(5,2)  NOT NULL,
		vat_amount  NUMERIC(18,2) NOT NULL,
		amount      NUMERIC(18,2) NOT NULL,
		UNIQUE (document_id, line_no)
	)`,

	`CREATE TABLE IF NOT EXISTS sys_audit (
		id                 UUID        PRIMARY KEY,
		tenant_id          TEXT        NOT NULL,
		entity_type        TEXT        NOT NULL,
		entity_id          TEXT        NOT NULL,
		action             TEXT        NOT NULL,
		user_id            TEXT,
		payload            JSONB,
		payload_compressed BYTEA,
		compression_algo   TEXT        NOT NULL DEFAULT 'none',
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS ix_sys_audit_tenant_entity
		ON sys_audit (tenant_id, entity_type, entity_id, created_at)`,
}

// Bootstrap creates the schema if it does not exist yet. Statements are
// idempotent, so running it on every startup is safe.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range schemaDDL {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return nil
}
