package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/leetclash/backend/internal/domain"
)

// isFetchFailed reports whether an error chain stems from an exhausted
// judge fetch
func isFetchFailed(err error) bool {
	return errors.Is(err, domain.ErrFetchFailed)
}

// cooldownPayload builds the 429 body for a cooldown error, carrying a
// machine-checkable retry-after so callers can self-correct
func cooldownPayload(ce *domain.CooldownError) gin.H {
	return gin.H{
		"error":               ce.Error(),
		"retry_after_seconds": ce.RetryAfterSeconds(),
	}
}
