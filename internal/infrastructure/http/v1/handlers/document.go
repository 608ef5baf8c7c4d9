package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"heshbon/internal/core/apperror"
	"heshbon/internal/core/id"
	"heshbon/internal/domain/documents"
	"heshbon/internal/domain/sequence"
	"heshbon/internal/infrastructure/http/v1/dto"
)

// DocumentHandler handles HTTP requests for billing documents.
type DocumentHandler struct {
	*BaseHandler
	service *documents.Service
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(base *BaseHandler, service *documents.Service) *DocumentHandler {
	return &DocumentHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /documents - create a draft.
func (h *DocumentHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := req.ToEntity(h.GetTenantID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromDocument(doc))
}

// Update handles PUT /documents/:id - edit a draft.
func (h *DocumentHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.service.GetByID(ctx, h.GetTenantID(c), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := req.ApplyTo(doc); err != nil {
		h.Error(c, apperror.NewValidation("invalid line values").WithDetail("error", err.Error()))
		return
	}

	if err := h.service.Update(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDocument(doc))
}

// Finalize handles POST /documents/:id/finalize - allocate the legal
// number and freeze the document.
func (h *DocumentHandler) Finalize(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	doc, err := h.service.Finalize(ctx, h.GetTenantID(c), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDocument(doc))
}

// GetByID handles GET /documents/:id.
func (h *DocumentHandler) GetByID(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	doc, err := h.service.GetByID(ctx, h.GetTenantID(c), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDocument(doc))
}

// List handles GET /documents - list with filtering.
func (h *DocumentHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := documents.Filter{
		Search: c.Query("search"),
		Limit:  h.ParseIntQuery(c, "limit", 20),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if v := c.Query("type"); v != "" {
		docType, err := sequence.ParseDocumentType(v)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.Type = &docType
	}

	if v := c.Query("status"); v != "" {
		status := documents.Status(v)
		if status != documents.StatusDraft && status != documents.StatusFinalized {
			h.Error(c, apperror.NewValidation("unknown status").WithDetail("value", v))
			return
		}
		filter.Status = &status
	}

	docs, total, err := h.service.List(ctx, h.GetTenantID(c), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		items = append(items, dto.FromDocument(doc))
	}

	h.OK(c, dto.ListResponse{
		Items:      items,
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}
