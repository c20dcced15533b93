package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors - these are business logic errors that should be translated
// to appropriate HTTP status codes by the handler layer

var (
	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrNoLinkedAccount    = errors.New("no LeetCode account linked")

	// Problem errors
	ErrProblemNotFound = errors.New("problem not found")

	// Contest errors
	ErrContestNotFound    = errors.New("contest not found")
	ErrContestFinalized   = errors.New("contest is finalized")
	ErrContestNotStarted  = errors.New("contest has not started")
	ErrContestRunning     = errors.New("contest has not ended yet")
	ErrContestEnded       = errors.New("contest has ended")
	ErrInvalidTimeWindow  = errors.New("contest end time must be after start time")
	ErrNotContestCreator  = errors.New("only the contest creator may do this")
	ErrAlreadyEnrolled    = errors.New("already enrolled in this contest")
	ErrNotEnrolled        = errors.New("not enrolled in this contest")

	// Judge errors
	ErrAccountNotFound = errors.New("LeetCode account not found")
	ErrFetchFailed     = errors.New("submission fetch failed")

	// General errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
)

// CooldownError is returned when a sync is attempted before its
// cooldown has elapsed. RetryAfter tells the caller exactly how long
// to wait, so it can self-correct without polling blindly.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("sync on cooldown, retry in %d seconds", e.RetryAfterSeconds())
}

// RetryAfterSeconds returns the remaining wait rounded up to whole seconds
func (e *CooldownError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// AsCooldown unwraps a CooldownError from an error chain, if present
func AsCooldown(err error) (*CooldownError, bool) {
	var ce *CooldownError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// DomainError wraps an error with additional context
type DomainError struct {
	Err     error
	Message string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &DomainError{
		Err:     err,
		Message: message,
	}
}
