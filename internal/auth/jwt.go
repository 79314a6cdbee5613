// Package auth validates access tokens issued by the hosted auth service.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrMissingSecret  = errors.New("jwt secret is empty")
	ErrMissingSubject = errors.New("token has no subject")
	ErrMissingExpiry  = errors.New("token has no expiry")
)

// JWTValidator checks HS256 access tokens against the project JWT secret.
type JWTValidator struct {
	secret []byte
}

// NewJWTValidator constructs a JWTValidator.
func NewJWTValidator(secret string) (*JWTValidator, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &JWTValidator{secret: []byte(secret)}, nil
}

// ValidateToken verifies the HS256 signature and a required expiry and
// returns the subject.
func (v *JWTValidator) ValidateToken(_ context.Context, tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if claims.ExpiresAt == nil {
		return "", ErrMissingExpiry
	}
	if claims.Subject == "" {
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}
