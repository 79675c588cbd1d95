package models

import "time"

// Client is a therapy client as seen by the practice core. Everything beyond the
// display name belongs to the client directory.
type Client struct {
	ID          int64     `json:"id"`
	TherapistID int64     `json:"therapist_id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// DisplayName returns the client's full name
func (c Client) DisplayName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// ClientFilter narrows a client listing
type ClientFilter struct {
	TherapistID int64
	ActiveOnly  bool
}
