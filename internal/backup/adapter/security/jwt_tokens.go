// Package security issues and validates operator access tokens.
package security

import (
	"context"
	stderrors "errors"
	"time"

	"transit-console/internal/shared/errors"

	"github.com/golang-jwt/jwt/v5"
)

// OperatorClaims identifies an operator. The subject is the operator id.
type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// OperatorID returns the subject claim.
func (c *OperatorClaims) OperatorID() string {
	return c.Subject
}

// HasRole reports whether the token carries role.
func (c *OperatorClaims) HasRole(role string) bool {
	return c.Role == role
}

// TokenConfig configures JWTokenService.
type TokenConfig struct {
	SecretKey string
	Issuer    string
	TTL       time.Duration
}

// JWTokenService signs and validates HS256 operator tokens.
type JWTokenService struct {
	secretKey []byte
	issuer    string
	ttl       time.Duration
}

// NewJWTokenService validates cfg and creates the service.
func NewJWTokenService(cfg TokenConfig) (*JWTokenService, error) {
	if cfg.SecretKey == "" {
		return nil, errors.NewValidationError("jwt secret key cannot be empty")
	}
	if cfg.Issuer == "" {
		return nil, errors.NewValidationError("jwt issuer cannot be empty")
	}
	if cfg.TTL <= 0 {
		return nil, errors.NewValidationError("jwt token TTL must be positive")
	}
	return &JWTokenService{
		secretKey: []byte(cfg.SecretKey),
		issuer:    cfg.Issuer,
		ttl:       cfg.TTL,
	}, nil
}

// GenerateToken issues a token for operatorID with role.
func (s *JWTokenService) GenerateToken(operatorID, role string) (string, error) {
	now := time.Now()
	claims := &OperatorClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
}

// ValidateToken parses tokenString and returns its claims.
func (s *JWTokenService) ValidateToken(ctx context.Context, tokenString string) (*OperatorClaims, error) {
	if tokenString == "" {
		return nil, errors.ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.ErrInvalidToken
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}
