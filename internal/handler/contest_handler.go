package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leetclash/backend/internal/domain"
	"github.com/leetclash/backend/internal/middleware"
	"github.com/leetclash/backend/internal/service"
)

// ContestHandler handles contest-related HTTP requests
type ContestHandler struct {
	contestService *service.ContestService
}

// NewContestHandler creates a new contest handler
func NewContestHandler(contestService *service.ContestService) *ContestHandler {
	return &ContestHandler{
		contestService: contestService,
	}
}

// CreateContest creates a new contest owned by the authenticated user
// POST /api/contests
func (h *ContestHandler) CreateContest(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	var req domain.CreateContestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	contest, err := h.contestService.CreateContest(c.Request.Context(), userID, &req)
	if err != nil {
		switch err {
		case domain.ErrInvalidTimeWindow:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Contest end time must be after start time",
			})
		case domain.ErrBadRequest:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Contest needs at least one problem",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create contest",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, contest.ToResponse(time.Now()))
}

// GetContests returns contests the authenticated user created or joined
// GET /api/contests
func (h *ContestHandler) GetContests(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	contests, err := h.contestService.GetUserContests(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve contests",
		})
		return
	}

	now := time.Now()
	responses := make([]domain.ContestResponse, len(contests))
	for i := range contests {
		responses[i] = contests[i].ToResponse(now)
	}

	c.JSON(http.StatusOK, gin.H{
		"contests": responses,
	})
}

// GetContest returns a contest by ID or share code
// GET /api/contests/:ref
func (h *ContestHandler) GetContest(c *gin.Context) {
	contest, ok := h.resolveContest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, contest.ToResponse(time.Now()))
}

// JoinContest enrolls the authenticated user in a contest
// POST /api/contests/:ref/join
func (h *ContestHandler) JoinContest(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	contest, ok := h.resolveContest(c)
	if !ok {
		return
	}

	participation, err := h.contestService.Join(c.Request.Context(), contest, userID)
	if err != nil {
		switch err {
		case domain.ErrAlreadyEnrolled:
			c.JSON(http.StatusConflict, gin.H{
				"error": "Already enrolled in this contest",
			})
		case domain.ErrContestFinalized:
			c.JSON(http.StatusConflict, gin.H{
				"error": "Contest is finalized",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to join contest",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, participation.ToResponse())
}

// FinalizeContest locks an ended contest; creator only
// POST /api/contests/:ref/finalize
func (h *ContestHandler) FinalizeContest(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	contest, ok := h.resolveContest(c)
	if !ok {
		return
	}

	err := h.contestService.Finalize(c.Request.Context(), contest, userID, time.Now())
	if err != nil {
		switch err {
		case domain.ErrNotContestCreator:
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Only the contest creator may finalize",
			})
		case domain.ErrContestFinalized:
			c.JSON(http.StatusConflict, gin.H{
				"error": "Contest is already finalized",
			})
		case domain.ErrContestRunning, domain.ErrContestNotStarted:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Contest has not ended yet",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to finalize contest",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Contest finalized",
	})
}

// GetLeaderboard returns the ranked board for a contest
// GET /api/contests/:ref/leaderboard
func (h *ContestHandler) GetLeaderboard(c *gin.Context) {
	contest, ok := h.resolveContest(c)
	if !ok {
		return
	}

	entries, err := h.contestService.Leaderboard(c.Request.Context(), contest)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve leaderboard",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contest":     contest.ToResponse(time.Now()),
		"leaderboard": entries,
	})
}

// resolveContest loads the contest named by the :ref path parameter,
// writing the error response itself when the lookup fails
func (h *ContestHandler) resolveContest(c *gin.Context) (*domain.Contest, bool) {
	contest, err := h.contestService.GetContestByRef(c.Request.Context(), c.Param("ref"))
	if err != nil {
		switch err {
		case domain.ErrContestNotFound:
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Contest not found",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve contest",
			})
		}
		return nil, false
	}
	return contest, true
}
