// Package firestore provides a Firestore implementation of the
// lettergate.Store interface. This implementation uses Firestore
// transactions for atomic conditional commits.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mihaimyh/lettergate/pkg/lettergate"
)

// Store implements lettergate.Store using Google Cloud Firestore
type Store struct {
	client          *firestore.Client
	usageCollection string
}

// Config holds Firestore store configuration
type Config struct {
	// UsageCollection is the Firestore collection for usage tracking
	// Default: "letter_usage"
	UsageCollection string
}

// New creates a new Firestore store adapter
func New(client *firestore.Client, config Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}

	// Set defaults
	if config.UsageCollection == "" {
		config.UsageCollection = "letter_usage"
	}

	return &Store{
		client:          client,
		usageCollection: config.UsageCollection,
	}, nil
}

// GetUsage implements lettergate.Store
func (s *Store) GetUsage(ctx context.Context, userID string, window lettergate.Window) (*lettergate.UsageRecord, error) {
	doc := s.usageDoc(userID, window)
	snap, err := doc.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil // No usage yet is not an error
		}
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}

	if !snap.Exists() {
		return nil, nil
	}

	data := snap.Data()
	rec := &lettergate.UsageRecord{
		UserID:       userID,
		Window:       window,
		MessageCount: getInt(data, "messageCount"),
		Messages:     getMessages(data, "messages"),
		UpdatedAt:    getTime(data, "updatedAt"),
	}

	return rec, nil
}

// AppendGrant implements lettergate.Store with a transaction-safe conditional
// commit. The count check and the message append happen in one transaction;
// Firestore retries it on contention, so concurrent grants never overshoot
// the limit.
func (s *Store) AppendGrant(ctx context.Context, req *lettergate.GrantRequest) (int, error) {
	if req == nil || req.UserID == "" {
		return 0, fmt.Errorf("invalid grant request")
	}

	doc := s.usageDoc(req.UserID, req.Window)
	var newCount int

	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(doc)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}

		current := 0
		var messages []map[string]interface{}
		if err == nil && snap.Exists() {
			data := snap.Data()
			current = getInt(data, "messageCount")
			messages = getRawMessages(data, "messages")
		}

		if current >= req.Limit {
			newCount = current
			return lettergate.ErrLimitReached
		}

		newCount = current + 1
		messages = append(messages, map[string]interface{}{
			"timestamp":  req.Message.Timestamp,
			"userText":   req.Message.UserText,
			"aiResponse": req.Message.AIResponse,
		})

		return tx.Set(doc, map[string]interface{}{
			"userId":       req.UserID,
			"windowKey":    req.Window.Key(),
			"messageCount": newCount,
			"messages":     messages,
			"updatedAt":    time.Now().UTC(),
		}, firestore.MergeAll)
	})

	if err != nil {
		if errors.Is(err, lettergate.ErrLimitReached) {
			return newCount, lettergate.ErrLimitReached
		}
		return 0, fmt.Errorf("failed to append grant: %w", err)
	}

	return newCount, nil
}

// usageDoc returns the Firestore document reference for usage tracking.
// Structure: letter_usage/{userID}/windows/{windowKey}
func (s *Store) usageDoc(userID string, window lettergate.Window) *firestore.DocumentRef {
	return s.client.Collection(s.usageCollection).
		Doc(userID).
		Collection("windows").
		Doc(window.Key())
}

// Helper functions for type conversion from Firestore data

func getInt(data map[string]interface{}, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(math.Round(v))
	default:
		return 0
	}
}

func getTime(data map[string]interface{}, key string) time.Time {
	if v, ok := data[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func getMessages(data map[string]interface{}, key string) []lettergate.Message {
	raw, ok := data[key].([]interface{})
	if !ok {
		return nil
	}

	messages := make([]lettergate.Message, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		messages = append(messages, lettergate.Message{
			Timestamp:  getTime(m, "timestamp"),
			UserText:   getString(m, "userText"),
			AIResponse: getString(m, "aiResponse"),
		})
	}
	return messages
}

func getRawMessages(data map[string]interface{}, key string) []map[string]interface{} {
	raw, ok := data[key].([]interface{})
	if !ok {
		return nil
	}

	messages := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			messages = append(messages, m)
		}
	}
	return messages
}
