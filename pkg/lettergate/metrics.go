package lettergate

import "time"

// Metrics defines the interface for tracking letter-gate operations.
type Metrics interface {
	// RecordGrant records a committed grant and the count it produced.
	RecordGrant(userID string, used, limit int)

	// RecordRejection records a rejected request by reason
	// (e.g. "limit_reached", "validation", "unauthorized").
	RecordRejection(reason string)

	// RecordCompletion records the duration and outcome of a completion call.
	RecordCompletion(duration time.Duration, err error)

	// RecordStorageOperation records the duration and status of a storage operation.
	RecordStorageOperation(operation string, duration time.Duration, err error)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordGrant(userID string, used, limit int)                                 {}
func (n *NoopMetrics) RecordRejection(reason string)                                              {}
func (n *NoopMetrics) RecordCompletion(duration time.Duration, err error)                         {}
func (n *NoopMetrics) RecordStorageOperation(operation string, duration time.Duration, err error) {}
