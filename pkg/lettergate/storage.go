package lettergate

import "context"

// Store defines the interface for usage persistence
// All methods use concrete types from this package to avoid import cycles
type Store interface {
	// GetUsage retrieves the usage record for a window.
	// Returns nil, nil when the user has no usage in the window.
	GetUsage(ctx context.Context, userID string, window Window) (*UsageRecord, error)

	// AppendGrant atomically increments the message count and appends the
	// message, but only while the current count is below req.Limit (a
	// missing record counts as zero). Returns the new count on success,
	// or the current count and ErrLimitReached when the condition fails.
	//
	// Backends with a native conditional-write primitive must perform the
	// check and the write as a single store-level transaction. Backends
	// without one (the filesystem store) must serialize access per
	// (user, window) instead; that substitute is explicitly weaker and
	// only safe within a single process.
	AppendGrant(ctx context.Context, req *GrantRequest) (int, error)
}
