package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smuppy/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestAuthService_VerifyToken(t *testing.T) {
	svc := NewAuthService("secret")
	future := time.Now().Add(time.Hour).Unix()

	token := signToken(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{
		"sub": "2b1f0c1e-5f55-4d0a-9a51-0b0b6a8f6d11", "email": "a@example.com", "exp": future,
	})
	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "2b1f0c1e-5f55-4d0a-9a51-0b0b6a8f6d11", claims.Sub)
	assert.Equal(t, "a@example.com", claims.Email)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "u", "exp": future})},
		{"expired", signToken(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": "u", "exp": time.Now().Add(-time.Minute).Unix()})},
		{"no expiry", signToken(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": "u"})},
		{"no subject", signToken(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"exp": future})},
		{"unsigned", signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"sub": "u", "exp": future})},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.VerifyToken(tt.token)
			requireKind(t, err, domain.KindUnauthorized)
		})
	}
}
