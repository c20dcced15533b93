package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leetclash/backend/internal/service"
)

// UserIDKey is the context key for the authenticated user's ID
const UserIDKey = "userID"

const bearerPrefix = "Bearer "

// bearerToken extracts the token from the Authorization header, or ""
// when the header is absent or malformed.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
}

// AuthMiddleware rejects requests without a valid access token and puts
// the authenticated user's ID on the context.
func AuthMiddleware(userService *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer token is required",
			})
			return
		}

		userID, err := userService.ValidateAccessToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// OptionalAuthMiddleware records the user's ID when a valid token is
// present but lets anonymous requests through.
func OptionalAuthMiddleware(userService *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if userID, err := userService.ValidateAccessToken(token); err == nil {
				c.Set(UserIDKey, userID)
			}
		}
		c.Next()
	}
}

// GetUserID extracts the user ID from the gin context
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := userID.(uuid.UUID)
	return id, ok
}

// RequireUser returns the authenticated user's ID, aborting with 401
// when the request carries none.
func RequireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "Authentication required",
		})
		return uuid.Nil, false
	}
	return userID, true
}
