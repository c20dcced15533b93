package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leetclash/backend/internal/domain"
	"github.com/leetclash/backend/internal/middleware"
	"github.com/leetclash/backend/internal/service"
)

// SyncHandler handles contest sync HTTP requests
type SyncHandler struct {
	syncService    *service.SyncService
	contestService *service.ContestService
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(syncService *service.SyncService, contestService *service.ContestService) *SyncHandler {
	return &SyncHandler{
		syncService:    syncService,
		contestService: contestService,
	}
}

// SyncParticipant syncs the authenticated user's progress in a contest
// POST /api/contests/:ref/sync
func (h *SyncHandler) SyncParticipant(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	contest, ok := h.resolveContest(c)
	if !ok {
		return
	}

	result, err := h.syncService.SyncParticipant(c.Request.Context(), contest, userID)
	if err != nil {
		h.writeSyncError(c, err)
		return
	}

	message := "No new submissions found"
	if result.Changed {
		message = "Progress updated"
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       message,
		"changed":       result.Changed,
		"participation": result.Participation.ToResponse(),
	})
}

// SyncAll syncs every participant of a contest
// POST /api/contests/:ref/sync-all
func (h *SyncHandler) SyncAll(c *gin.Context) {
	if _, ok := middleware.RequireUser(c); !ok {
		return
	}

	contest, ok := h.resolveContest(c)
	if !ok {
		return
	}

	result, err := h.syncService.SyncAll(c.Request.Context(), contest)
	if err != nil {
		h.writeSyncError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// writeSyncError maps sync failures onto the wire. Cooldown errors are
// retryable and carry their remaining wait; fetch exhaustion is the
// upstream's fault, not the caller's.
func (h *SyncHandler) writeSyncError(c *gin.Context, err error) {
	if ce, ok := domain.AsCooldown(err); ok {
		c.JSON(http.StatusTooManyRequests, cooldownPayload(ce))
		return
	}

	switch {
	case errors.Is(err, domain.ErrContestFinalized):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "Contest is finalized",
			"finalized": true,
		})
	case errors.Is(err, domain.ErrContestNotStarted):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Contest has not started",
		})
	case errors.Is(err, domain.ErrContestEnded):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Contest has ended",
		})
	case errors.Is(err, domain.ErrNotEnrolled):
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Not enrolled in this contest",
		})
	case errors.Is(err, domain.ErrNoLinkedAccount):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Link a LeetCode account before syncing",
		})
	case errors.Is(err, domain.ErrAccountNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Linked LeetCode account no longer exists",
		})
	case isFetchFailed(err):
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Submission fetch failed, try again later",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Sync failed",
		})
	}
}

// resolveContest loads the contest named by the :ref path parameter
func (h *SyncHandler) resolveContest(c *gin.Context) (*domain.Contest, bool) {
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
