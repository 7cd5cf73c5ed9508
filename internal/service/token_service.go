package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/unihorario/registration-api/internal/models"
	appErrors "github.com/unihorario/registration-api/pkg/errors"
)

// TokenService validates access tokens issued by the identity collaborator.
// Tokens are HS256-signed with a shared secret; this service never issues
// tokens itself.
type TokenService struct {
	secret []byte
	issuer string
}

// NewTokenService constructs the token service.
func NewTokenService(secret, issuer string) *TokenService {
	return &TokenService{secret: []byte(secret), issuer: issuer}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *TokenService) ValidateToken(tokenString string) (*models.StudentClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.StudentClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.StudentClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if s.issuer != "" {
		issuer, err := claims.GetIssuer()
		if err != nil || issuer != s.issuer {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token issuer")
		}
	}
	if claims.Identity() == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token carries no student identity")
	}
	return claims, nil
}
