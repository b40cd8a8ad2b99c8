package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/lesson-scheduler-api/pkg/errors"
	"github.com/noah-isme/lesson-scheduler-api/pkg/response"
)

// RequireRoles rejects callers whose token role is not listed.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
