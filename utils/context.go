package utils

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/trekvista/booking/logger"
	"github.com/trekvista/booking/models/shared_models"
)

// GetUserIdentity extracts the authenticated caller from the Gin context.
// The auth middleware stores the user ID as a string under "sub" and the
// role under "role"; the core always receives identity as an explicit
// argument built here, never read from ambient state.
func GetUserIdentity(c *gin.Context) (shared_models.UserIdentity, error) {
	sub, exists := c.Get("sub")
	if !exists {
		logger.ErrorLogger.Error("User ID not found in context.")
		return shared_models.UserIdentity{}, ErrUserIDNotFound
	}

	userIDStr, ok := sub.(string)
	if !ok {
		logger.ErrorLogger.Errorf("User ID in context is not a string, actual type: %T", sub)
		return shared_models.UserIdentity{}, fmt.Errorf("invalid user ID format in context")
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to parse user ID string %q to UUID: %v", userIDStr, err)
		return shared_models.UserIdentity{}, fmt.Errorf("invalid user ID format")
	}

	role := shared_models.RoleUser
	if r, exists := c.Get("role"); exists {
		if roleStr, ok := r.(string); ok && roleStr != "" {
			role = roleStr
		}
	}

	return shared_models.UserIdentity{ID: userID, Role: role}, nil
}
