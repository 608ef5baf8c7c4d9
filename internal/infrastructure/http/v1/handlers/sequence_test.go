package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "heshbon/internal/core/context"
	"heshbon/internal/domain/sequence"
	"heshbon/internal/infrastructure/http/v1/middleware"
)

// newSequenceRouter builds a minimal router around the sequence handler:
// the real error middleware plus a stub auth layer that puts a fixed
// tenant into the request context.
func newSequenceRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := sequence.NewMemoryRepository()
	service := sequence.NewService(repo, nil, sequence.DefaultConfig())
	query := sequence.NewQueryService(repo, nil)
	handler := NewSequenceHandler(NewBaseHandler(), service, query)

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.Use(func(c *gin.Context) {
		ctx := appctx.WithUser(c.Request.Context(), &appctx.UserContext{
			UserID:   "user-1",
			TenantID: "acme",
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	sequences := router.Group("/sequences")
	sequences.GET("", handler.ListStatuses)
	sequences.GET("/:type", handler.GetStatus)
	sequences.POST("/:type/lock", handler.Lock)
	return router
}

func postLock(router *gin.Engine, docType, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sequences/"+docType+"/lock", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestLock_Success(t *testing.T) {
	router := newSequenceRouter(t)

	rec := postLock(router, "receipt", `{"startingNumber": 100}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		DocumentType   string `json:"documentType"`
		StartingNumber int64  `json:"startingNumber"`
		Locked         bool   `json:"locked"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "receipt", body.DocumentType)
	assert.Equal(t, int64(100), body.StartingNumber)
	assert.True(t, body.Locked)
}

// A zero starting number must pass the JSON bind and fail in domain
// validation, so the client sees the typed code instead of a generic
// bind error.
func TestLock_ZeroStartingNumber(t *testing.T) {
	router := newSequenceRouter(t)

	rec := postLock(router, "receipt", `{"startingNumber": 0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "INVALID_STARTING_NUMBER", errorCode(t, rec))
}

func TestLock_NegativeStartingNumber(t *testing.T) {
	router := newSequenceRouter(t)

	rec := postLock(router, "receipt", `{"startingNumber": -5}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "INVALID_STARTING_NUMBER", errorCode(t, rec))
}

func TestLock_SecondAttemptConflicts(t *testing.T) {
	router := newSequenceRouter(t)

	rec := postLock(router, "receipt", `{"startingNumber": 100}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postLock(router, "receipt", `{"startingNumber": 200}`)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "SEQUENCE_ALREADY_LOCKED", errorCode(t, rec))
}

func TestLock_UnknownDocumentType(t *testing.T) {
	router := newSequenceRouter(t)

	rec := postLock(router, "memo", `{"startingNumber": 1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}
