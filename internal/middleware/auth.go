package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/auxroom/internal/identity"
	"github.com/stwalsh4118/auxroom/internal/models"
)

// TokenHeader carries the opaque actor token on authenticated requests
const TokenHeader = "X-User-Token"

// actorContextKey is the gin context key the authenticated actor is stored under
const actorContextKey = "actor"

// RequireActor returns a Gin middleware that resolves the X-User-Token header
// to an actor via the identity service. Requests without a valid token are
// rejected with 401 before reaching the handler.
func RequireActor(identityService *identity.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(TokenHeader)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Missing " + TokenHeader + " header",
			})
			return
		}

		actor, err := identityService.Lookup(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Invalid token",
			})
			return
		}

		c.Set(actorContextKey, actor)
		c.Next()
	}
}

// ActorFrom retrieves the authenticated actor stored by RequireActor.
// The second return is false when the middleware did not run.
func ActorFrom(c *gin.Context) (*models.Actor, bool) {
	value, ok := c.Get(actorContextKey)
	if !ok {
		return nil, false
	}
	actor, ok := value.(*models.Actor)
	return actor, ok
}
