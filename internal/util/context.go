package util

import (
	"github.com/gin-gonic/gin"
	"github.com/zfogg/traveltweets/internal/errors"
	"github.com/zfogg/traveltweets/internal/models"
)

// Context keys set by middleware.
const (
	ContextUserKey      = "user"
	ContextUserIDKey    = "user_id"
	ContextRequestIDKey = "request_id"
)

// GetUserFromContext extracts the authenticated user from the Gin context.
// If the request is not authenticated it responds 401 and returns false.
func GetUserFromContext(c *gin.Context) (*models.User, bool) {
	user, ok := ViewerFromContext(c)
	if !ok {
		RespondWithAPIError(c, errors.Unauthorized(""))
		return nil, false
	}
	return user, true
}

// ViewerFromContext returns the signed-in user when there is one, without
// writing a response. Used by routes that are public but viewer-aware.
func ViewerFromContext(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}

// ViewerID returns the signed-in user's ID or "".
func ViewerID(c *gin.Context) string {
	if user, ok := ViewerFromContext(c); ok {
		return user.ID
	}
	return ""
}

// SetUser stores the authenticated user on the context.
func SetUser(c *gin.Context, user *models.User) {
	c.Set(ContextUserKey, user)
	c.Set(ContextUserIDKey, user.ID)
}

// RequestID returns the id assigned by the request id middleware
func RequestID(c *gin.Context) string {
	return c.GetString(ContextRequestIDKey)
}
