package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	"github.com/noah-isme/lesson-scheduler-api/internal/service"
	appErrors "github.com/noah-isme/lesson-scheduler-api/pkg/errors"
	"github.com/noah-isme/lesson-scheduler-api/pkg/logger"
	"github.com/noah-isme/lesson-scheduler-api/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing JWT claims.
	ContextUserKey = "currentUser"
	// ContextActorKey is the gin context key storing the resolved actor.
	ContextActorKey = "currentActor"
)

// JWT protects routes by requiring a valid access token and resolves the
// caller into an actor.
func JWT(identity *service.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing or invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := identity.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		actor, err := identity.ResolveActor(c.Request.Context(), claims)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(ContextActorKey, actor)
		c.Set(logger.ActorIDKey, actor.ActorID())
		c.Next()
	}
}

// ActorFromContext returns the actor set by JWT, or nil.
func ActorFromContext(c *gin.Context) models.Actor {
	value, exists := c.Get(ContextActorKey)
	if !exists {
		return nil
	}
	actor, ok := value.(models.Actor)
	if !ok {
		return nil
	}
	return actor
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
