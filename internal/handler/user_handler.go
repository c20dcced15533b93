package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leetclash/backend/internal/domain"
	"github.com/leetclash/backend/internal/middleware"
	"github.com/leetclash/backend/internal/service"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// GetCurrentUser returns the authenticated user's profile
// GET /api/users/me
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		switch err {
		case domain.ErrUserNotFound:
			c.JSON(http.StatusNotFound, gin.H{
				"error": "User not found",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve user",
			})
		}
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

// LinkLeetCodeAccount links a LeetCode account to the authenticated user
// PUT /api/users/me/leetcode
func (h *UserHandler) LinkLeetCodeAccount(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	var req domain.LinkAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	user, err := h.userService.LinkLeetCodeAccount(c.Request.Context(), userID, req.LeetCodeUsername)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "LeetCode account not found",
			})
		case err == domain.ErrUserNotFound:
			c.JSON(http.StatusNotFound, gin.H{
				"error": "User not found",
			})
		case isFetchFailed(err):
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "Could not reach LeetCode, try again later",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to link account",
			})
		}
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}
