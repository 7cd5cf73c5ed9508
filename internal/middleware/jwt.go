package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/unihorario/registration-api/internal/models"
	"github.com/unihorario/registration-api/internal/service"
	appErrors "github.com/unihorario/registration-api/pkg/errors"
	"github.com/unihorario/registration-api/pkg/response"
)

// ContextStudentKey is the gin context key storing the authenticated claims.
const ContextStudentKey = "currentStudent"

// JWT protects routes by requiring a valid access token.
func JWT(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextStudentKey, claims)
		c.Next()
	}
}

// StudentID returns the authenticated student's identifier, empty when the
// route is unauthenticated.
func StudentID(c *gin.Context) string {
	value, exists := c.Get(ContextStudentKey)
	if !exists {
		return ""
	}
	claims, ok := value.(*models.StudentClaims)
	if !ok {
		return ""
	}
	return claims.Identity()
}
