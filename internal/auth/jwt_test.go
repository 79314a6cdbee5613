package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestValidateToken(t *testing.T) {
	v, err := NewJWTValidator(testSecret)
	require.NoError(t, err)

	token := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	id, err := v.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)
}

func TestValidateTokenRejects(t *testing.T) {
	v, err := NewJWTValidator(testSecret)
	require.NoError(t, err)

	expired := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	_, err = v.ValidateToken(context.Background(), expired)
	require.Error(t, err)
	var ve *jwt.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.NotZero(t, ve.Errors&jwt.ValidationErrorExpired)

	noExpiry := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{Subject: "user-1"})
	_, err = v.ValidateToken(context.Background(), noExpiry)
	assert.ErrorIs(t, err, ErrMissingExpiry)

	hs512 := sign(t, jwt.SigningMethodHS512, []byte(testSecret), jwt.RegisteredClaims{
		Subject:   "user-2",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	_, err = v.ValidateToken(context.Background(), hs512)
	assert.Error(t, err)

	wrongKey := sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	_, err = v.ValidateToken(context.Background(), wrongKey)
	assert.Error(t, err)

	noSubject := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	_, err = v.ValidateToken(context.Background(), noSubject)
	assert.ErrorIs(t, err, ErrMissingSubject)

	_, err = v.ValidateToken(context.Background(), "not-a-jwt")
	assert.Error(t, err)
}

func TestNewJWTValidatorRequiresSecret(t *testing.T) {
	_, err := NewJWTValidator("")
	assert.ErrorIs(t, err, ErrMissingSecret)
}
