package service

import (
	"errors"
	"fmt"
	"time"

	"speechworks/internal/repository"
)

var (
	// ErrNotFound is returned when a referenced row does not exist
	ErrNotFound = repository.ErrNotFound

	// ErrOutsideSessionWindow matches every *TimeWindowError
	ErrOutsideSessionWindow = errors.New("session can only be started during its scheduled time")
)

// TimeWindowError rejects starting a session outside [WindowStart, WindowEnd].
// The session's status is left unchanged.
type TimeWindowError struct {
	SessionID   int64
	WindowStart time.Time
	WindowEnd   time.Time
	Now         time.Time
}

func (e *TimeWindowError) Error() string {
	return fmt.Sprintf("session %d can only be started between %s and %s (now %s)",
		e.SessionID,
		e.WindowStart.Format(time.RFC3339),
		e.WindowEnd.Format(time.RFC3339),
		e.Now.Format(time.RFC3339))
}

func (e *TimeWindowError) Is(target error) bool {
	return target == ErrOutsideSessionWindow
}
