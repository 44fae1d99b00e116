package security

import (
	"context"
	"testing"
	"time"

	"transit-console/internal/shared/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, ttl time.Duration) *JWTokenService {
	t.Helper()
	svc, err := NewJWTokenService(TokenConfig{SecretKey: "test-secret", Issuer: "transit-console", TTL: ttl})
	require.NoError(t, err)
	return svc
}

func TestNewJWTokenService_ValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  TokenConfig
	}{
		{"missing secret", TokenConfig{Issuer: "i", TTL: time.Hour}},
		{"missing issuer", TokenConfig{SecretKey: "s", TTL: time.Hour}},
		{"zero ttl", TokenConfig{SecretKey: "s", Issuer: "i"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJWTokenService(tt.cfg)
			assert.True(t, errors.IsValidation(err))
		})
	}
}

func TestJWTokenService_RoundTrip(t *testing.T) {
	svc := newTestService(t, time.Hour)

	token, err := svc.GenerateToken("op-1", "super_operator")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.OperatorID())
	assert.True(t, claims.HasRole("super_operator"))
	assert.False(t, claims.HasRole("operator"))
}

func TestJWTokenService_RejectsForeignSignature(t *testing.T) {
	svc := newTestService(t, time.Hour)
	other, err := NewJWTokenService(TokenConfig{SecretKey: "other", Issuer: "transit-console", TTL: time.Hour})
	require.NoError(t, err)

	token, err := other.GenerateToken("op-1", "super_operator")
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, errors.ErrInvalidToken)
}

func TestJWTokenService_Expired(t *testing.T) {
	svc := newTestService(t, time.Hour)
	claims := &OperatorClaims{
		Role: "super_operator",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "op-1",
			Issuer:    "transit-console",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, errors.ErrTokenExpired)
}

func TestJWTokenService_Empty(t *testing.T) {
	_, err := newTestService(t, time.Hour).ValidateToken(context.Background(), "")
	assert.ErrorIs(t, err, errors.ErrInvalidToken)
}
