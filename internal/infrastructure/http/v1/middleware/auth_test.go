package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "heshbon/internal/core/context"
)

func newRoleRouter(user *appctx.UserContext, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler())
	if user != nil {
		router.Use(func(c *gin.Context) {
			ctx := appctx.WithUser(c.Request.Context(), user)
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
	router.POST("/guarded", RequireRole(roles...), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func requestGuarded(router *gin.Engine) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequireRole_Allowed(t *testing.T) {
	user := &appctx.UserContext{UserID: "u1", TenantID: "acme", Roles: []string{"owner"}}
	router := newRoleRouter(user, "owner", "admin")

	rec := requestGuarded(router)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireRole_AdminBypass(t *testing.T) {
	user := &appctx.UserContext{UserID: "u1", TenantID: "acme", IsAdmin: true}
	router := newRoleRouter(user, "owner")

	rec := requestGuarded(router)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireRole_Forbidden(t *testing.T) {
	user := &appctx.UserContext{UserID: "u1", TenantID: "acme", Roles: []string{"member"}}
	router := newRoleRouter(user, "owner", "admin")

	rec := requestGuarded(router)
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "FORBIDDEN", body.Code)
}

func TestRequireRole_Unauthenticated(t *testing.T) {
	router := newRoleRouter(nil, "owner")

	rec := requestGuarded(router)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
}
