package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leetclash/backend/internal/domain"
	"github.com/leetclash/backend/internal/service"
)

// ProblemHandler handles problem catalog HTTP requests
type ProblemHandler struct {
	catalog *service.CatalogService
}

// NewProblemHandler creates a new problem handler
func NewProblemHandler(catalog *service.CatalogService) *ProblemHandler {
	return &ProblemHandler{
		catalog: catalog,
	}
}

// GetProblem resolves a problem slug to its catalog entry
// GET /api/problems/:slug
func (h *ProblemHandler) GetProblem(c *gin.Context) {
	slug := c.Param("slug")
	if slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Problem slug is required",
		})
		return
	}

	problem, err := h.catalog.Resolve(c.Request.Context(), slug)
	if err != nil {
		switch {
		case err == domain.ErrProblemNotFound:
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Problem not found",
			})
		case isFetchFailed(err):
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "Could not reach LeetCode, try again later",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to resolve problem",
			})
		}
		return
	}

	c.JSON(http.StatusOK, problem.ToResponse())
}
