package repository

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a lookup by ID matches no row
var ErrNotFound = errors.New("not found")

// placeholders returns "?, ?, ?" for n values
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// dbTime normalizes an instant for storage so text-backed dialects compare correctly
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
