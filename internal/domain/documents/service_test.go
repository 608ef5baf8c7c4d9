package documents

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heshbon/internal/core/apperror"
	"heshbon/internal/core/id"
	"heshbon/internal/domain/sequence"
)

// memRepo is an in-memory document Repository for tests.
type memRepo struct {
	mu   sync.Mutex
	docs map[id.ID]*Document

	// updateErr, when set, fails the next Update call once.
	updateErr error
}

func newMemRepo() *memRepo {
	return &memRepo{docs: make(map[id.ID]*Document)}
}

func (r *memRepo) Create(ctx context.Context, doc *Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *doc
	r.docs[doc.ID] = &stored
	return nil
}

func (r *memRepo) Update(ctx context.Context, doc *Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		err := r.updateErr
		r.updateErr = nil
		return err
	}
	if _, ok := r.docs[doc.ID]; !ok {
		return apperror.NewNotFound("document", doc.ID)
	}
	stored := *doc
	r.docs[doc.ID] = &stored
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, tenantID string, docID id.ID) (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[docID]
	if !ok || doc.TenantID != tenantID {
		return nil, apperror.NewNotFound("document", docID)
	}
	copied := *doc
	return &copied, nil
}

func (r *memRepo) List(ctx context.Context, tenantID string, f Filter) ([]*Document, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Document
	for _, doc := range r.docs {
		if doc.TenantID != tenantID {
			continue
		}
		if f.Type != nil && doc.Type != *f.Type {
			continue
		}
		copied := *doc
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (r *memRepo) CountFinalized(ctx context.Context, tenantID string, docType sequence.DocumentType) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, doc := range r.docs {
		if doc.TenantID == tenantID && doc.Type == docType && doc.Status == StatusFinalized {
			n++
		}
	}
	return n, nil
}

// noopTxManager runs fn without a real transaction.
type noopTxManager struct{}

func (noopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestSetup(t *testing.T) (*Service, *memRepo, *sequence.Service) {
	t.Helper()
	seqRepo := sequence.NewMemoryRepository()
	allocator := sequence.NewService(seqRepo, nil, sequence.DefaultConfig())
	repo := newMemRepo()
	svc := NewService(repo, allocator, nil, noopTxManager{})
	return svc, repo, allocator
}

// recordingAuditor captures finalization audit calls.
type recordingAuditor struct {
	mu      sync.Mutex
	entries []id.ID
	err     error
}

func (a *recordingAuditor) RecordFinalize(ctx context.Context, tenantID string, docID id.ID, payload any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, docID)
	return a.err
}

func draftReceipt(tenantID string) *Document {
	doc := NewDocument(tenantID, sequence.TypeReceipt, "Wayne Enterprises")
	doc.AddLine("Consulting", decimal.NewFromInt(2), decimal.NewFromInt(500), decimal.NewFromInt(17))
	return doc
}

func TestCreate_DraftHasNoNumber(t *testing.T) {
	svc, _, _ := newTestSetup(t)
	ctx := context.Background()

	doc := draftReceipt("acme")
	require.NoError(t, svc.Create(ctx, doc))
	assert.Nil(t, doc.Number)
	assert.Equal(t, StatusDraft, doc.Status)
	assert.Empty(t, doc.DisplayNumber())
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestSetup(t)
	ctx := context.Background()

	doc := NewDocument("acme", sequence.TypeReceipt, "")
	err := svc.Create(ctx, doc)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestFinalize_RequiresLockedSequence(t *testing.T) {
	svc, _, _ := newTestSetup(t)
	ctx := context.Background()

	doc := draftReceipt("acme")
	require.NoError(t, svc.Create(ctx, doc))

	_, err := svc.Finalize(ctx, "acme", doc.ID)
	require.Error(t, err)
	assert.True(t, sequence.IsNotLocked(err))

	// Document stays a draft.
	reloaded, err := svc.GetByID(ctx, "acme", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, reloaded.Status)
}

func TestFinalize_AllocatesSequentialNumbers(t *testing.T) {
	svc, _, allocator := newTestSetup(t)
	ctx := context.Background()

	_, err := allocator.Lock(ctx, "acme", sequence.TypeReceipt, 1001, strPtr("RC-"))
	require.NoError(t, err)

	first := draftReceipt("acme")
	require.NoError(t, svc.Create(ctx, first))
	second := draftReceipt("acme")
	require.NoError(t, svc.Create(ctx, second))

	finalized, err := svc.Finalize(ctx, "acme", first.ID)
	require.NoError(t, err)
	require.NotNil(t, finalized.Number)
	assert.Equal(t, int64(1001), *finalized.Number)
	assert.Equal(t, "RC-1001", finalized.DisplayNumber())
	assert.Equal(t, StatusFinalized, finalized.Status)
	require.NotNil(t, finalized.IssuedAt)

	finalized, err = svc.Finalize(ctx, "acme", second.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1002), *finalized.Number)
}

func TestFinalize_FinalizedDocumentIsImmutable(t *testing.T) {
	svc, _, allocator := newTestSetup(t)
	ctx := context.Background()

	_, err := allocator.Lock(ctx, "acme", sequence.TypeReceipt, 1, nil)
	require.NoError(t, err)

	doc := draftReceipt("acme")
	require.NoError(t, svc.Create(ctx, doc))
	finalized, err := svc.Finalize(ctx, "acme", doc.ID)
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, "acme", doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeDocumentFinalized))

	err = svc.Update(ctx, finalized)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeDocumentFinalized))
}

func TestFinalize_PersistenceFailureLeavesGap(t *testing.T) {
	svc, repo, allocator := newTestSetup(t)
	ctx := context.Background()

	_, err := allocator.Lock(ctx, "acme", sequence.TypeReceipt, 100, nil)
	require.NoError(t, err)

	doc := draftReceipt("acme")
	require.NoError(t, svc.Create(ctx, doc))

	// Number 100 is consumed even though the document write fails.
	repo.updateErr = apperror.NewDatabase(assert.AnError)
	_, err = svc.Finalize(ctx, "acme", doc.ID)
	require.Error(t, err)

	// The retry gets the NEXT number; 100 is a recorded gap, never reissued.
	finalized, err := svc.Finalize(ctx, "acme", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(101), *finalized.Number)
}

func TestFinalize_RecordsAuditEvent(t *testing.T) {
	seqRepo := sequence.NewMemoryRepository()
	allocator := sequence.NewService(seqRepo, nil, sequence.DefaultConfig())
	repo := newMemRepo()
	auditor := &recordingAuditor{}
	svc := NewService(repo, allocator, auditor, noopTxManager{})
	ctx := context.Background()

	_, err := allocator.Lock(ctx, "acme", sequence.TypeReceipt, 1, nil)
	require.NoError(t, err)

	doc := draftReceipt("acme")
	require.NoError(t, svc.Create(ctx, doc))
	_, err = svc.Finalize(ctx, "acme", doc.ID)
	require.NoError(t, err)

	require.Len(t, auditor.entries, 1)
	assert.Equal(t, doc.ID, auditor.entries[0])
}

func TestFinalize_AuditFailureIsBestEffort(t *testing.T) {
	seqRepo := sequence.NewMemoryRepository()
	allocator := sequence.NewService(seqRepo, nil, sequence.DefaultConfig())
	repo := newMemRepo()
	auditor := &recordingAuditor{err: assert.AnError}
	svc := NewService(repo, allocator, auditor, noopTxManager{})
	ctx := context.Background()

	_, err := allocator.Lock(ctx, "acme", sequence.TypeReceipt, 1, nil)
	require.NoError(t, err)

	doc := draftReceipt("acme")
	require.NoError(t, svc.Create(ctx, doc))

	// A failing audit sink must not block issuing the document.
	finalized, err := svc.Finalize(ctx, "acme", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), *finalized.Number)
}

func TestFinalize_EmptyLinesRejected(t *testing.T) {
	svc, _, allocator := newTestSetup(t)
	ctx := context.Background()

	_, err := allocator.Lock(ctx, "acme", sequence.TypeReceipt, 1, nil)
	require.NoError(t, err)

	doc := NewDocument("acme", sequence.TypeReceipt, "Wayne Enterprises")
	require.NoError(t, svc.Create(ctx, doc))

	_, err = svc.Finalize(ctx, "acme", doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestHasFinalizedDocuments(t *testing.T) {
	svc, _, allocator := newTestSetup(t)
	ctx := context.Background()

	issued, err := svc.HasFinalizedDocuments(ctx, "acme", sequence.TypeReceipt)
	require.NoError(t, err)
	assert.False(t, issued)

	_, err = allocator.Lock(ctx, "acme", sequence.TypeReceipt, 1, nil)
	require.NoError(t, err)
	doc := draftReceipt("acme")
	require.NoError(t, svc.Create(ctx, doc))
	_, err = svc.Finalize(ctx, "acme", doc.ID)
	require.NoError(t, err)

	issued, err = svc.HasFinalizedDocuments(ctx, "acme", sequence.TypeReceipt)
	require.NoError(t, err)
	assert.True(t, issued)

	// Other tenants are unaffected.
	issued, err = svc.HasFinalizedDocuments(ctx, "globex", sequence.TypeReceipt)
	require.NoError(t, err)
	assert.False(t, issued)
}

func TestDocument_Totals(t *testing.T) {
	doc := NewDocument("acme", sequence.TypeTaxInvoice, "Wayne Enterprises")
	doc.AddLine("Widget", decimal.NewFromInt(3), decimal.NewFromInt(100), decimal.NewFromInt(17))
	doc.AddLine("Shipping", decimal.NewFromInt(1), decimal.NewFromInt(50), decimal.Zero)

	// 3*100 = 300, VAT 51; 50, VAT 0 -> total 401, VAT 51
	assert.True(t, doc.TotalAmount.Equal(decimal.NewFromInt(401)),
		"total = %s", doc.TotalAmount)
	assert.True(t, doc.VATAmount.Equal(decimal.NewFromInt(51)),
		"vat = %s", doc.VATAmount)
	assert.Equal(t, 2, len(doc.Lines))
	assert.Equal(t, 2, doc.Lines[1].LineNo)
}

func strPtr(s string) *string { return &s }
