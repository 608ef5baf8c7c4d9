package dto

import (
	"time"

	"heshbon/internal/domain/sequence"
)

// --- Request DTOs ---

// LockSequenceRequest fixes the starting number for a document type.
// This is a one-time, irreversible operation per (tenant, type).
// StartingNumber deliberately carries no binding tag: zero must reach the
// domain validation so the caller sees INVALID_STARTING_NUMBER, not a
// generic bind failure.
type LockSequenceRequest struct {
	StartingNumber int64   `json:"startingNumber"`
	Prefix         *string `json:"prefix,omitempty"`
}

// --- Response DTOs ---

// SequenceResponse represents a locked sequence.
type SequenceResponse struct {
	DocumentType   string    `json:"documentType"`
	Locked         bool      `json:"locked"`
	StartingNumber int64     `json:"startingNumber"`
	CurrentNumber  *int64    `json:"currentNumber,omitempty"`
	Prefix         *string   `json:"prefix,omitempty"`
	LockedAt       time.Time `json:"lockedAt"`
	LockedBy       *string   `json:"lockedBy,omitempty"`
}

// FromSequence converts a domain sequence to response.
func FromSequence(s *sequence.Sequence) SequenceResponse {
	return SequenceResponse{
		DocumentType:   string(s.DocumentType),
		Locked:         s.Locked,
		StartingNumber: s.StartingNumber,
		CurrentNumber:  s.CurrentNumber,
		Prefix:         s.Prefix,
		LockedAt:       s.LockedAt,
		LockedBy:       s.LockedBy,
	}
}

// SequenceStatusResponse is the read-only numbering status for one
// document type. NextNumber is a preview, not a reservation.
type SequenceStatusResponse struct {
	DocumentType       string  `json:"documentType"`
	Locked             bool    `json:"locked"`
	StartingNumber     *int64  `json:"startingNumber"`
	CurrentNumber      *int64  `json:"currentNumber"`
	NextNumber         *int64  `json:"nextNumber"`
	Prefix             *string `json:"prefix,omitempty"`
	HasIssuedDocuments bool    `json:"hasIssuedDocuments"`
}

// FromStatus converts a domain status to response.
func FromStatus(s *sequence.Status) SequenceStatusResponse {
	return SequenceStatusResponse{
		DocumentType:       string(s.DocumentType),
		Locked:             s.Locked,
		StartingNumber:     s.StartingNumber,
		CurrentNumber:      s.CurrentNumber,
		NextNumber:         s.NextNumber,
		Prefix:             s.Prefix,
		HasIssuedDocuments: s.HasIssuedDocuments,
	}
}
