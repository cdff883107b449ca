package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	ph := NewPasswordHasher()

	hash, err := ph.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := ph.VerifyPassword("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ph.VerifyPassword("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHashesAreSalted(t *testing.T) {
	ph := NewPasswordHasher()

	a, err := ph.HashPassword("same password")
	require.NoError(t, err)
	b, err := ph.HashPassword("same password")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyPasswordBadFormat(t *testing.T) {
	ph := NewPasswordHasher()

	_, err := ph.VerifyPassword("anything", "not-a-hash")
	require.Error(t, err)
}

func TestJWTRoundTrip(t *testing.T) {
	h := NewJWTHandler("unit-test-secret", time.Hour)

	token, err := h.GenerateAccessToken("operator")
	require.NoError(t, err)

	claims, err := h.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Username)
	assert.Equal(t, "scopecore", claims.Issuer)
}

func TestJWTExpiredRejected(t *testing.T) {
	h := NewJWTHandler("unit-test-secret", -time.Minute)

	token, err := h.GenerateAccessToken("operator")
	require.NoError(t, err)

	_, err = h.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestJWTWrongSecretRejected(t *testing.T) {
	h := NewJWTHandler("unit-test-secret", time.Hour)
	other := NewJWTHandler("different-secret", time.Hour)

	token, err := h.GenerateAccessToken("operator")
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestAPITokenFormatAndHash(t *testing.T) {
	g := NewAPITokenGenerator()

	token, hash, err := g.GenerateToken()
	require.NoError(t, err)

	assert.True(t, g.ValidateTokenFormat(token))
	assert.Equal(t, hash, g.HashToken(token))

	other, _, err := g.GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestValidateTokenFormatRejectsJunk(t *testing.T) {
	g := NewAPITokenGenerator()

	assert.False(t, g.ValidateTokenFormat(""))
	assert.False(t, g.ValidateTokenFormat("sc_tooshort"))
	assert.False(t, g.ValidateTokenFormat(strings.Repeat("x", 120)))
}
