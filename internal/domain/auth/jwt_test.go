package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("test-secret"))

	token, expiresAt, err := svc.GenerateAccessToken(
		"user-1", "acme", "dana@acme.example",
		[]string{"accountant"}, false,
	)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	uc, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", uc.UserID)
	assert.Equal(t, "acme", uc.TenantID)
	assert.Equal(t, "dana@acme.example", uc.Email)
	assert.Equal(t, []string{"accountant"}, uc.Roles)
	assert.False(t, uc.IsAdmin)
}

func TestJWTService_RejectsWrongSecret(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret-a"))
	other := NewJWTService(DefaultJWTConfig("secret-b"))

	token, _, err := svc.GenerateAccessToken("user-1", "acme", "", nil, false)
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_RejectsExpiredToken(t *testing.T) {
	cfg := DefaultJWTConfig("test-secret")
	cfg.AccessTokenTTL = -time.Minute
	svc := NewJWTService(cfg)

	token, _, err := svc.GenerateAccessToken("user-1", "acme", "", nil, false)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_RejectsMissingTenant(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("test-secret"))

	token, _, err := svc.GenerateAccessToken("user-1", "", "", nil, true)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorContains(t, err, "no tenant")
}
