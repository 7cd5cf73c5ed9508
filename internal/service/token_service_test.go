package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unihorario/registration-api/internal/models"
	appErrors "github.com/unihorario/registration-api/pkg/errors"
)

func signToken(t *testing.T, secret string, claims models.StudentClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestTokenServiceValidateToken(t *testing.T) {
	svc := NewTokenService("secret", "auth-ms")
	signed := signToken(t, "secret", models.StudentClaims{
		StudentID: "est-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "auth-ms",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "est-1", claims.Identity())
}

func TestTokenServiceSubjectFallback(t *testing.T) {
	svc := NewTokenService("secret", "")
	signed := signToken(t, "secret", models.StudentClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "est-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "est-7", claims.Identity())
}

func TestTokenServiceRejectsBadSignature(t *testing.T) {
	svc := NewTokenService("secret", "")
	signed := signToken(t, "other-secret", models.StudentClaims{
		StudentID: "est-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := svc.ValidateToken(signed)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestTokenServiceRejectsExpired(t *testing.T) {
	svc := NewTokenService("secret", "")
	signed := signToken(t, "secret", models.StudentClaims{
		StudentID: "est-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := svc.ValidateToken(signed)
	require.Error(t, err)
}

func TestTokenServiceRejectsWrongIssuer(t *testing.T) {
	svc := NewTokenService("secret", "auth-ms")
	signed := signToken(t, "secret", models.StudentClaims{
		StudentID: "est-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := svc.ValidateToken(signed)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestTokenServiceRejectsMissingIdentity(t *testing.T) {
	svc := NewTokenService("secret", "")
	signed := signToken(t, "secret", models.StudentClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := svc.ValidateToken(signed)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
