package lettergate

import (
	"context"
	"time"
)

// Window represents a per-user quota window: one UTC calendar day.
// Windows never span days and reset implicitly at UTC midnight.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowFor returns the quota window containing the given instant.
func WindowFor(now time.Time) Window {
	start := startOfDayUTC(now)
	return Window{Start: start, End: start.Add(24 * time.Hour)}
}

// Key returns a stable string key for this window
func (w Window) Key() string {
	return w.Start.UTC().Format("2006-01-02")
}

func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Message is one granted letter check recorded in a usage record.
type Message struct {
	Timestamp  time.Time `json:"timestamp"`
	UserText   string    `json:"userText"`
	AIResponse string    `json:"aiResponse"`
}

// UsageRecord tracks granted letter checks for a user within one window.
// Records are created lazily on the first grant of the day, mutated only by
// appending one message per grant, and never deleted by this package.
type UsageRecord struct {
	UserID       string
	Window       Window
	MessageCount int
	Messages     []Message
	UpdatedAt    time.Time
}

// GrantRequest is the commit unit passed to Store.AppendGrant.
type GrantRequest struct {
	UserID  string
	Window  Window
	Limit   int
	Message Message
}

// CheckResult is the outcome of a granted letter check.
type CheckResult struct {
	// Response is the raw text returned by the completion gateway.
	Response string

	// Used is the user's message count after the commit.
	Used int

	// Remaining is the allowance left in the window, clamped to >= 0.
	Remaining int
}

// CompletionFunc invokes the external language-model service with the
// sanitized letter text and returns the completion text. Implementations
// bound their own time budget and classify failures with the sentinel
// errors of this package.
type CompletionFunc func(ctx context.Context, text string) (string, error)

// Config holds ledger configuration
type Config struct {
	// DailyLimit is the maximum number of granted checks per user per
	// UTC day (default: 5).
	DailyLimit int

	// Logger is used for structured logging (default: NoopLogger)
	Logger Logger

	// Metrics is used for tracking ledger operations (default: NoopMetrics)
	Metrics Metrics

	// Now returns the current time; override in tests to pin the window
	// (default: time.Now).
	Now func() time.Time
}

// DefaultDailyLimit is the limit applied when Config.DailyLimit is unset.
const DefaultDailyLimit = 5
