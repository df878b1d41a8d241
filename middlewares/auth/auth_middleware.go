package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trekvista/booking/logger"
	"github.com/trekvista/booking/utils"
	"github.com/trekvista/booking/utils/jwt_parse"
)

// AuthMiddleware checks the authentication of the request using the JWT
// token. Identity is issued by an external service; this middleware only
// validates the signature and loads the subject into the context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		jwt_parse.ParseJWTToken()(c)

		if c.IsAborted() {
			return
		}

		if _, err := utils.GetUserIdentity(c); err != nil {
			logger.ErrorLogger.Errorf("Authenticated request carries no usable identity: %v", err)
			c.Header("Content-Type", "application/json")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "error": "Unauthorized: Missing user identification from token."})
			return
		}

		c.Next()
	}
}

// RequireAdmin rejects requests whose token does not carry the admin role.
// It must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := utils.GetUserIdentity(c)
		if err != nil {
			c.Header("Content-Type", "application/json")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "error": "Unauthorized."})
			return
		}

		if !user.IsAdmin() {
			logger.WarnLogger.Warnf("User %s attempted an admin operation with role %q", user.ID, user.Role)
			c.Header("Content-Type", "application/json")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": "ACCESS_DENIED", "error": "Forbidden: admin role required."})
			return
		}

		c.Next()
	}
}
