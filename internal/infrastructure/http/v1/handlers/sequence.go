package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"heshbon/internal/domain/sequence"
	"heshbon/internal/infrastructure/http/v1/dto"
)

// SequenceHandler handles HTTP requests for sequence management.
type SequenceHandler struct {
	*BaseHandler
	service *sequence.Service
	query   *sequence.QueryService
}

// NewSequenceHandler creates a new sequence handler.
func NewSequenceHandler(base *BaseHandler, service *sequence.Service, query *sequence.QueryService) *SequenceHandler {
	return &SequenceHandler{
		BaseHandler: base,
		service:     service,
		query:       query,
	}
}

// Lock fixes the starting number for one document type. One-time per
// (tenant, type); a second attempt returns 409 SEQUENCE_ALREADY_LOCKED.
// POST /sequences/:type/lock
func (h *SequenceHandler) Lock(c *gin.Context) {
	ctx := c.Request.Context()

	docType, err := sequence.ParseDocumentType(c.Param("type"))
	if err != nil {
		h.Error(c, err)
		return
	}

	var req dto.LockSequenceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	seq, err := h.service.Lock(ctx, h.GetTenantID(c), docType, req.StartingNumber, req.Prefix)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromSequence(seq))
}

// GetStatus returns the numbering status for one document type.
// Read-only: never mutates the sequence, safe to poll.
// GET /sequences/:type
func (h *SequenceHandler) GetStatus(c *gin.Context) {
	ctx := c.Request.Context()

	docType, err := sequence.ParseDocumentType(c.Param("type"))
	if err != nil {
		h.Error(c, err)
		return
	}

	status, err := h.query.GetStatus(ctx, h.GetTenantID(c), docType)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromStatus(status))
}

// ListStatuses returns the numbering status for every document type.
// GET /sequences
func (h *SequenceHandler) ListStatuses(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := h.GetTenantID(c)

	items := make([]dto.SequenceStatusResponse, 0, len(sequence.DocumentTypes()))
	for _, docType := range sequence.DocumentTypes() {
		status, err := h.query.GetStatus(ctx, tenantID, docType)
		if err != nil {
			h.Error(c, err)
			return
		}
		items = append(items, dto.FromStatus(status))
	}

	h.OK(c, gin.H{"items": items})
}
