package api

// CheckRequest is the inbound letter submission
type CheckRequest struct {
	// UserID identifies the submitting user
	UserID string `json:"userId"`

	// Text is the letter body to check
	Text string `json:"text"`

	// APIKey is the shared service credential. It may also be supplied
	// via the X-Api-Key header; the body field wins when both are set.
	APIKey string `json:"apiKey,omitempty"`
}

// CheckResponse is returned for an admitted letter
type CheckResponse struct {
	// Response is the feedback text produced for the letter
	Response string `json:"response"`

	// Requests is the number of submissions left in the current day
	Requests int `json:"requests"`
}

// ErrorResponse is returned for every rejected or failed submission
type ErrorResponse struct {
	Error string `json:"error"`

	// Code is a stable machine-readable discriminator
	// ("limit_reached", "invalid_request", "unauthorized", "busy", "upstream_error", "internal")
	Code string `json:"code,omitempty"`

	// Requests is present for quota rejections (always 0)
	Requests *int `json:"requests,omitempty"`
}

// QuotaResponse describes a user's current standing without consuming quota
type QuotaResponse struct {
	UserID    string `json:"userId"`
	Date      string `json:"date"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}
