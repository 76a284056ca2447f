package lettergate

import "errors"

var (
	// ErrLimitReached is returned when the daily letter limit is reached.
	// It is an expected admission outcome, not a transport failure.
	ErrLimitReached = errors.New("daily letter limit reached")

	// ErrUnauthorized is returned for callers that fail authorization
	ErrUnauthorized = errors.New("unauthorized caller")

	// ErrTimeout is returned when the completion call does not settle
	// within its time budget
	ErrTimeout = errors.New("completion timed out")

	// ErrMalformedResponse is returned when the upstream response has no
	// usable completion (no choices, empty message body)
	ErrMalformedResponse = errors.New("malformed completion response")

	// ErrUpstream is returned for any other upstream failure (network,
	// rate limit, auth); wrapped with the upstream message when available
	ErrUpstream = errors.New("completion service failure")

	// ErrStorageUnavailable is returned when storage is unavailable
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// User-facing copy for the two expected degraded outcomes.
const (
	// LimitReachedMessage is shown when a user exhausts the daily allowance.
	LimitReachedMessage = "Wow! You've sent us lots of letters to check today, great job! " +
		"You can send more letters tomorrow when your daily limit starts over. " +
		"We're looking forward to helping you again then!"

	// BusyMessage is shown when the completion call times out.
	BusyMessage = "The server is busy. Please try again later."
)

// ValidationError reports a request rejected before any side effect.
// Reason is safe to surface to the caller.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
