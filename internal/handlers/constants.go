package handlers

const (
	RequestIDHeader = "X-Request-ID"
	ContentTypeJSON = "application/json"

	// maxBodyBytes caps JSON request bodies
	maxBodyBytes = 1 << 20

	ErrInvalidJSON         = "Invalid JSON body"
	ErrInternalServerError = "Internal server error"
)
