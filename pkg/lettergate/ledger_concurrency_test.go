package lettergate_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/mihaimyh/lettergate/pkg/lettergate"
	"github.com/mihaimyh/lettergate/storage/memory"
)

// TestLedger_Check_ConcurrentNeverExceedsLimit hammers a single user with
// more concurrent requests than the limit allows. The conditional commit
// must admit exactly the limit, no matter how the pre-checks interleave.
func TestLedger_Check_ConcurrentNeverExceedsLimit(t *testing.T) {
	const limit = 5
	const attempts = 20

	ledger, err := lettergate.NewLedger(memory.New(), lettergate.Config{
		DailyLimit: limit,
	})
	if err != nil {
		t.Fatalf("NewLedger failed: %v", err)
	}

	var granted, rejected atomic.Int64
	g, ctx := errgroup.WithContext(context.Background())

	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, err := ledger.Check(ctx, "user1", "letter", echoComplete("r"))
			switch {
			case err == nil:
				granted.Add(1)
			case errors.Is(err, lettergate.ErrLimitReached):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if granted.Load() != limit {
		t.Errorf("Expected exactly %d grants, got %d", limit, granted.Load())
	}
	if rejected.Load() != attempts-limit {
		t.Errorf("Expected %d rejections, got %d", attempts-limit, rejected.Load())
	}

	used, err := ledger.CurrentUsage(context.Background(), "user1")
	if err != nil {
		t.Fatalf("CurrentUsage failed: %v", err)
	}
	if used != limit {
		t.Errorf("Expected committed usage %d, got %d", limit, used)
	}

	rec, err := ledger.Usage(context.Background(), "user1")
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if len(rec.Messages) != limit {
		t.Errorf("Expected %d stored messages, got %d", limit, len(rec.Messages))
	}
}

// TestLedger_Check_ConcurrentDistinctUsers verifies per-user isolation
// under concurrency.
func TestLedger_Check_ConcurrentDistinctUsers(t *testing.T) {
	const limit = 3
	users := []string{"a", "b", "c", "d"}

	ledger, err := lettergate.NewLedger(memory.New(), lettergate.Config{
		DailyLimit: limit,
	})
	if err != nil {
		t.Fatalf("NewLedger failed: %v", err)
	}

	g, ctx := errgroup.WithContext(context.Background())
	for _, user := range users {
		for i := 0; i < limit; i++ {
			g.Go(func() error {
				_, err := ledger.Check(ctx, user, "letter", echoComplete("r"))
				return err
			})
		}
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Expected every request to be admitted, got %v", err)
	}

	for _, user := range users {
		used, err := ledger.CurrentUsage(context.Background(), user)
		if err != nil {
			t.Fatalf("CurrentUsage failed: %v", err)
		}
		if used != limit {
			t.Errorf("User %s: expected usage %d, got %d", user, limit, used)
		}
	}
}
