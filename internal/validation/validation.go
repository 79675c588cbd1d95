// Package validation checks user-supplied values before they reach services.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"speechworks/internal/models"
)

// ValidationError reports an invalid field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err wraps a *ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

const (
	MinSessionMinutes = 15
	MaxSessionMinutes = 180
	MinDifficulty     = 1
	MaxDifficulty     = 5
)

var emailRegexp = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmail checks that email looks like a deliverable address
func ValidateEmail(email string) error {
	if email == "" {
		return invalid("email", "is required")
	}
	if !emailRegexp.MatchString(email) {
		return invalid("email", "is not a valid address")
	}
	return nil
}

// ValidateName checks a person's name
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("name", "is required")
	}
	if utf8.RuneCountInString(name) < 2 {
		return invalid("name", "must be at least 2 characters")
	}
	if utf8.RuneCountInString(name) > 100 {
		return invalid("name", "must be at most 100 characters")
	}
	return nil
}

func ValidateSessionStatus(s models.SessionStatus) error {
	if !s.Valid() {
		return invalid("status", "unknown session status %q", s)
	}
	return nil
}

func ValidateCategory(c models.ActivityCategory) error {
	if !c.Valid() {
		return invalid("category", "unknown activity category %q", c)
	}
	return nil
}

// ValidateDuration checks a session length in minutes
func ValidateDuration(minutes int) error {
	if minutes < MinSessionMinutes || minutes > MaxSessionMinutes {
		return invalid("duration_minutes", "must be between %d and %d", MinSessionMinutes, MaxSessionMinutes)
	}
	return nil
}

func ValidateDifficulty(level int) error {
	if level < MinDifficulty || level > MaxDifficulty {
		return invalid("difficulty_level", "must be between %d and %d", MinDifficulty, MaxDifficulty)
	}
	return nil
}

// ValidateTrialCounts checks a trial outcome written to an assignment
func ValidateTrialCounts(attempted, correct int) error {
	if attempted < 0 {
		return invalid("trials_attempted", "must not be negative")
	}
	if correct < 0 || correct > attempted {
		return invalid("trials_correct", "must be between 0 and trials_attempted")
	}
	return nil
}

// ValidateRange checks that an integer query parameter lies within [lo, hi]
func ValidateRange(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return invalid(field, "must be between %d and %d", lo, hi)
	}
	return nil
}

// ValidateActivity checks an activity before it is stored
func ValidateActivity(a models.TherapyActivity) error {
	if strings.TrimSpace(a.Name) == "" {
		return invalid("name", "is required")
	}
	if err := ValidateCategory(a.Category); err != nil {
		return err
	}
	if err := ValidateDifficulty(a.DifficultyLevel); err != nil {
		return err
	}
	for i, item := range a.Items {
		if strings.TrimSpace(item.Word) == "" {
			return invalid(fmt.Sprintf("items[%d].word", i), "is required")
		}
	}
	return nil
}
