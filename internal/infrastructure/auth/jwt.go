package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/infrastructure/config"
)

// Common errors
var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrInvalidClaims  = errors.New("invalid token claims")
	ErrMissingAdminID = errors.New("missing admin_id in claims")
)

// Claims represents the JWT claims this service accepts. Tokens are
// issued by the admin bot gateway; this service only validates them.
type Claims struct {
	jwt.RegisteredClaims
	AdminID string `json:"admin_id"`
	Name    string `json:"name,omitempty"`
}

// TokenValidator validates admin tokens
type TokenValidator struct {
	secret []byte
	issuer string
}

// NewTokenValidator creates a token validator from config
func NewTokenValidator(cfg *config.JWTConfig) *TokenValidator {
	return &TokenValidator{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
	}
}

// Validate parses and validates a token, returning its claims.
// The admin_id claim must be a UUID.
func (v *TokenValidator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, ErrInvalidToken
	}

	if claims.AdminID == "" {
		return nil, ErrMissingAdminID
	}
	if _, err := uuid.Parse(claims.AdminID); err != nil {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}

// AdminUUID returns the admin ID from validated claims
func (c *Claims) AdminUUID() uuid.UUID {
	id, _ := uuid.Parse(c.AdminID)
	return id
}
