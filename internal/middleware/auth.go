package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wedhub/internal/authz"
	"wedhub/internal/utils"
)

const actorKey = "actor"

// Auth validates the Bearer access token and stores the caller's actor in
// the gin context.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		// пропускаем preflight
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}

		userID, role, err := utils.ParseAccessToken(secret, strings.TrimSpace(parts[1]))
		if err != nil || !authz.ValidRole(role) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(actorKey, authz.Actor{UserID: userID, Role: role})
		c.Next()
	}
}

// ActorFrom returns the actor stored by Auth.
func ActorFrom(c *gin.Context) (authz.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return authz.Actor{}, false
	}
	a, ok := v.(authz.Actor)
	return a, ok
}

// SetActor is used by tests to bypass token parsing.
func SetActor(c *gin.Context, a authz.Actor) {
	c.Set(actorKey, a)
}
