package sequence

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	appctx "heshbon/internal/core/context"
	"heshbon/pkg/logger"
)

// Config holds allocation retry behavior.
type Config struct {
	// MaxAttempts bounds the IncrementAndGet retry loop. Exhaustion
	// surfaces as AllocationContention.
	MaxAttempts int

	// RetryBackoff is the base delay between attempts; actual delay is
	// jittered and grows linearly with the attempt count.
	RetryBackoff time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		RetryBackoff: 20 * time.Millisecond,
	}
}

// Service performs the two authoritative sequence operations: the one-time
// lock of a starting number, and atomic allocation of the next number.
// Errors from either are always surfaced to the caller; there is no
// default-to-success fallback.
type Service struct {
	repo    Repository
	auditor Auditor // optional, best-effort
	cfg     Config
}

// NewService creates a sequence service. auditor may be nil.
func NewService(repo Repository, auditor Auditor, cfg Config) *Service {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultConfig().RetryBackoff
	}
	return &Service{repo: repo, auditor: auditor, cfg: cfg}
}

// Lock fixes the starting number for (tenant, document type) exactly once.
// The transition is irreversible; concurrent attempts serialize at the
// store and exactly one wins, the rest fail with AlreadyLocked.
func (s *Service) Lock(ctx context.Context, tenantID string, docType DocumentType, startingNumber int64, prefix *string) (*Sequence, error) {
	var lockedBy *string
	if uid := appctx.GetUserID(ctx); uid != "" {
		lockedBy = &uid
	}

	seq := NewSequence(tenantID, docType, startingNumber, prefix, lockedBy)
	if err := seq.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Lock(ctx, seq); err != nil {
		return nil, err
	}

	if s.auditor != nil {
		if err := s.auditor.RecordLock(ctx, seq); err != nil {
			logger.Warn(ctx, "sequence lock audit failed",
				"document_type", docType,
				"error", err)
		}
	}

	logger.Info(ctx, "sequence locked",
		"tenant_id", tenantID,
		"document_type", docType,
		"starting_number", startingNumber)

	return seq, nil
}

// AllocateNext reserves the next number for a locked sequence. The counter
// advance is permanent: even if the caller later fails to persist its
// document, the number is never handed out again. Duplicate legal numbers
// are a harder compliance violation than an occasional gap.
func (s *Service) AllocateNext(ctx context.Context, tenantID string, docType DocumentType) (*Allocation, error) {
	if tenantID == "" {
		return nil, NewInvalidTenant()
	}
	if !docType.Valid() {
		_, err := ParseDocumentType(string(docType))
		return nil, err
	}

	var lastConflict error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		alloc, err := s.repo.IncrementAndGet(ctx, tenantID, docType)
		if err == nil {
			logger.Debug(ctx, "sequence number allocated",
				"tenant_id", tenantID,
				"document_type", docType,
				"number", alloc.Number)
			return alloc, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		lastConflict = err

		if attempt == s.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoffDelay(s.cfg.RetryBackoff, attempt)):
		}
	}

	logger.Warn(ctx, "sequence allocation retry budget exhausted",
		"tenant_id", tenantID,
		"document_type", docType,
		"attempts", s.cfg.MaxAttempts)

	return nil, NewAllocationContention(tenantID, docType, s.cfg.MaxAttempts, lastConflict)
}

// backoffDelay grows linearly with the attempt count, with full jitter so
// that colliding callers spread out.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	max := int64(base) * int64(attempt)
	return time.Duration(rand.Int64N(max) + int64(base)/2)
}
