package lettergate

import (
	"context"
	"errors"
	"time"
)

// Ledger is the admission-control core. It tracks, per (user, UTC day), how
// many completions have been granted, admits or rejects new requests, and
// records each grant durably through a Store.
type Ledger struct {
	store  Store
	config Config
}

// NewLedger creates a new ledger with the given store and configuration
func NewLedger(store Store, config Config) (*Ledger, error) {
	if store == nil {
		return nil, ErrStorageUnavailable
	}

	// Set defaults
	if config.DailyLimit <= 0 {
		config.DailyLimit = DefaultDailyLimit
	}
	if config.Logger == nil {
		config.Logger = &NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &NoopMetrics{}
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Ledger{
		store:  store,
		config: config,
	}, nil
}

// DailyLimit returns the configured per-day grant limit.
func (l *Ledger) DailyLimit() int {
	return l.config.DailyLimit
}

// CurrentWindow returns the window new grants would land in.
func (l *Ledger) CurrentWindow() Window {
	return WindowFor(l.config.Now())
}

// CurrentUsage returns the user's message count for today's window.
// Absence of a record means 0.
func (l *Ledger) CurrentUsage(ctx context.Context, userID string) (int, error) {
	window := WindowFor(l.config.Now())
	rec, err := l.getUsage(ctx, userID, window)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, nil
	}
	return rec.MessageCount, nil
}

// Usage returns the full usage record for today's window, or nil when the
// user has not been granted anything today.
func (l *Ledger) Usage(ctx context.Context, userID string) (*UsageRecord, error) {
	return l.getUsage(ctx, userID, WindowFor(l.config.Now()))
}

// Check runs the admission protocol for one letter:
//
//  1. an uncommitted pre-check rejects with ErrLimitReached before any
//     upstream spend when the user is already at the limit;
//  2. the completion function is invoked with the sanitized text;
//  3. the grant is committed through a single conditional AppendGrant that
//     increments only while the count is below the limit. A condition
//     failure at commit time is a limit-reached rejection; the completion
//     was already paid for and its result is discarded.
//
// The pre-check narrows but does not eliminate the window in which two
// concurrent requests both pass step 1; the conditional commit in step 3 is
// what guarantees the limit is never exceeded.
//
// Completion failures (timeout, malformed or failed upstream) surface
// unwrapped and are never committed: no usage is charged for a call that
// did not definitively succeed.
func (l *Ledger) Check(ctx context.Context, userID, text string, complete CompletionFunc) (*CheckResult, error) {
	window := WindowFor(l.config.Now())

	used, err := l.getCount(ctx, userID, window)
	if err != nil {
		return nil, err
	}
	if used >= l.config.DailyLimit {
		l.config.Metrics.RecordRejection("limit_reached")
		l.config.Logger.Info("letter check rejected",
			Field{Key: "userId", Value: userID},
			Field{Key: "used", Value: used},
			Field{Key: "limit", Value: l.config.DailyLimit})
		return nil, ErrLimitReached
	}

	start := time.Now()
	response, err := complete(ctx, Sanitize(text))
	l.config.Metrics.RecordCompletion(time.Since(start), err)
	if err != nil {
		l.config.Logger.Warn("completion failed",
			Field{Key: "userId", Value: userID},
			Field{Key: "error", Value: err.Error()})
		return nil, err
	}

	grant := &GrantRequest{
		UserID: userID,
		Window: window,
		Limit:  l.config.DailyLimit,
		Message: Message{
			Timestamp:  l.config.Now().UTC(),
			UserText:   text,
			AIResponse: response,
		},
	}

	start = time.Now()
	newCount, err := l.store.AppendGrant(ctx, grant)
	opErr := err
	if errors.Is(opErr, ErrLimitReached) {
		opErr = nil // an admission outcome, not a storage fault
	}
	l.config.Metrics.RecordStorageOperation("append_grant", time.Since(start), opErr)
	if err != nil {
		if errors.Is(err, ErrLimitReached) {
			// Lost the commit race: the completion result is discarded.
			l.config.Metrics.RecordRejection("limit_reached")
			l.config.Logger.Info("letter check rejected at commit",
				Field{Key: "userId", Value: userID})
			return nil, ErrLimitReached
		}
		l.config.Logger.Error("grant commit failed",
			Field{Key: "userId", Value: userID},
			Field{Key: "window", Value: window.Key()},
			Field{Key: "error", Value: err.Error()})
		return nil, err
	}

	remaining := l.config.DailyLimit - newCount
	if remaining < 0 {
		remaining = 0
	}
	l.config.Metrics.RecordGrant(userID, newCount, l.config.DailyLimit)
	return &CheckResult{
		Response:  response,
		Used:      newCount,
		Remaining: remaining,
	}, nil
}

func (l *Ledger) getUsage(ctx context.Context, userID string, window Window) (*UsageRecord, error) {
	start := time.Now()
	rec, err := l.store.GetUsage(ctx, userID, window)
	l.config.Metrics.RecordStorageOperation("get_usage", time.Since(start), err)
	return rec, err
}

func (l *Ledger) getCount(ctx context.Context, userID string, window Window) (int, error) {
	rec, err := l.getUsage(ctx, userID, window)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, nil
	}
	return rec.MessageCount, nil
}
