package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-sync/internal/config"
)

var testJWT = config.JWTConfig{
	Secret:            strings.Repeat("s", 32),
	Issuer:            "storefront-sync",
	AccessTokenExpiry: time.Hour,
}

func TestAccessToken_RoundTrip(t *testing.T) {
	m := NewJWTManager(testJWT)
	userID := uuid.New()

	token, err := m.GenerateAccessToken(userID, "ada@example.com", true)
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.True(t, claims.IsAdmin)
}

func TestValidateAccessToken_Rejects(t *testing.T) {
	m := NewJWTManager(testJWT)
	userID := uuid.New()

	expiredCfg := testJWT
	expiredCfg.AccessTokenExpiry = -time.Minute
	expired, err := NewJWTManager(expiredCfg).GenerateAccessToken(userID, "", false)
	require.NoError(t, err)

	otherCfg := testJWT
	otherCfg.Secret = strings.Repeat("x", 32)
	foreign, err := NewJWTManager(otherCfg).GenerateAccessToken(userID, "", false)
	require.NoError(t, err)

	otherIssuer := testJWT
	otherIssuer.Issuer = "someone-else"
	misissued, err := NewJWTManager(otherIssuer).GenerateAccessToken(userID, "", false)
	require.NoError(t, err)

	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:           userID,
		TokenType:        "refresh",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testJWT.Issuer},
	}).SignedString([]byte(testJWT.Secret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"wrong secret": foreign,
		"wrong issuer": misissued,
		"refresh type": refresh,
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.ValidateAccessToken(token)
			assert.Error(t, err)
		})
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromHeader("Bearer abc"))
	assert.Empty(t, ExtractTokenFromHeader("Basic abc"))
	assert.Empty(t, ExtractTokenFromHeader(""))
}
