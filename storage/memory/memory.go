// Package memory provides an in-memory implementation of the lettergate.Store
// interface. This implementation is primarily intended for testing and
// development.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mihaimyh/lettergate/pkg/lettergate"
)

// Store implements lettergate.Store using an in-memory map
type Store struct {
	mu      sync.RWMutex
	records map[string]*lettergate.UsageRecord
}

// New creates a new in-memory store
func New() *Store {
	return &Store{
		records: make(map[string]*lettergate.UsageRecord),
	}
}

// GetUsage implements lettergate.Store
func (s *Store) GetUsage(ctx context.Context, userID string, window lettergate.Window) (*lettergate.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordKey(userID, window)]
	if !ok {
		return nil, nil // No usage yet is not an error
	}

	// Return a copy to prevent external mutations
	return copyRecord(rec), nil
}

// AppendGrant implements lettergate.Store. The check and the write happen
// under one lock, so the conditional update is atomic.
func (s *Store) AppendGrant(ctx context.Context, req *lettergate.GrantRequest) (int, error) {
	if req == nil || req.UserID == "" {
		return 0, fmt.Errorf("invalid grant request")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(req.UserID, req.Window)
	rec, ok := s.records[key]

	current := 0
	if ok {
		current = rec.MessageCount
	}
	if current >= req.Limit {
		return current, lettergate.ErrLimitReached
	}

	// Created lazily on the first grant of the window
	if !ok {
		rec = &lettergate.UsageRecord{
			UserID: req.UserID,
			Window: req.Window,
		}
		s.records[key] = rec
	}

	rec.MessageCount++
	rec.Messages = append(rec.Messages, req.Message)
	rec.UpdatedAt = time.Now().UTC()

	return rec.MessageCount, nil
}

// Clear removes all data (useful for testing)
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*lettergate.UsageRecord)
}

func recordKey(userID string, window lettergate.Window) string {
	return fmt.Sprintf("%s:%s", userID, window.Key())
}

func copyRecord(rec *lettergate.UsageRecord) *lettergate.UsageRecord {
	recCopy := *rec
	recCopy.Messages = make([]lettergate.Message, len(rec.Messages))
	copy(recCopy.Messages, rec.Messages)
	return &recCopy
}
