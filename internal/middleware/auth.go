package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"timemate/internal/supabase"
)

// Context keys set by the auth middleware.
const (
	UserIDKey      = "userID"
	AccessTokenKey = "accessToken"
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization")
	ErrMalformedHeader   = errors.New("invalid authorization header")
)

// TokenValidator resolves the user id behind an access token.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if !authenticate(c, validator, token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

// OptionalAuthMiddleware authenticates the caller when a bearer token is sent
// and lets anonymous requests through. An invalid token is still rejected.
func OptionalAuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c)
		if errors.Is(err, ErrMissingAuthHeader) {
			c.Next()
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if !authenticate(c, validator, token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, validator TokenValidator, token string) bool {
	userID, err := validator.ValidateToken(c.Request.Context(), token)
	if err != nil {
		logrus.WithError(err).Warn("auth middleware: invalid token")
		return false
	}

	c.Set(UserIDKey, userID)
	c.Set(AccessTokenKey, token)
	c.Request = c.Request.WithContext(supabase.WithAccessToken(c.Request.Context(), token))
	return true
}

func extractToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", ErrMissingAuthHeader
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrMalformedHeader
	}
	return strings.TrimSpace(parts[1]), nil
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// AccessToken returns the caller's bearer token, or "" for anonymous requests.
func AccessToken(c *gin.Context) string {
	return c.GetString(AccessTokenKey)
}
