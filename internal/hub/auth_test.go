package hub

import (
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestTokenValidatorAcceptsValidToken(t *testing.T) {
	v := NewTokenValidator(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id":  "user-1",
		"username": "tester",
	})

	claims, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "tester", claims.Username)
}

func TestTokenValidatorRejectsBadTokens(t *testing.T) {
	v := NewTokenValidator(testSecret)

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Validate("not-a-token")
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "another-secret-another-secret-ab", jwt.MapClaims{
			"user_id":  "user-1",
			"username": "tester",
		})
		_, err := v.Validate(token)
		assert.Error(t, err)
	})

	t.Run("missing claims", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{"user_id": "user-1"})
		_, err := v.Validate(token)
		assert.Error(t, err)
	})

	t.Run("non-string claims", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"user_id":  42,
			"username": "tester",
		})
		_, err := v.Validate(token)
		assert.Error(t, err)
	})
}

func TestBearerToken(t *testing.T) {
	t.Run("authorization header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/ws", nil)
		r.Header.Set("Authorization", "Bearer abc123")
		assert.Equal(t, "abc123", bearerToken(r))
	})

	t.Run("malformed header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/ws", nil)
		r.Header.Set("Authorization", "abc123")
		assert.Empty(t, bearerToken(r))
	})

	t.Run("query fallback", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/ws?token=xyz", nil)
		assert.Equal(t, "xyz", bearerToken(r))
	})

	t.Run("nothing", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/ws", nil)
		assert.Empty(t, bearerToken(r))
	})
}
