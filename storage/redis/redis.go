// Package redis provides a Redis implementation of the lettergate.Store
// interface. This implementation uses atomic operations via Lua scripts for
// transaction safety.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mihaimyh/lettergate/pkg/lettergate"
)

// Store implements lettergate.Store using Redis
type Store struct {
	client      redis.UniversalClient
	config      Config
	appendGrant *redis.Script
}

// Config holds Redis store configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "lettergate:")
	KeyPrefix string

	// RecordTTL is the TTL applied to usage keys. Windows are daily, so
	// anything comfortably above 24h keeps the current window alive while
	// letting old ones expire (default: 48h). 0 disables expiration.
	RecordTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "lettergate:",
		RecordTTL: 48 * time.Hour,
	}
}

// New creates a new Redis store adapter
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring
func New(client redis.UniversalClient, config Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	// Set defaults
	if config.KeyPrefix == "" {
		config.KeyPrefix = "lettergate:"
	}

	s := &Store{
		client: client,
		config: config,
	}
	s.loadScripts()

	return s, nil
}

// loadScripts compiles the Lua script for the atomic conditional commit:
// increment the count and append the message only while count < limit,
// as one script execution.
func (s *Store) loadScripts() {
	s.appendGrant = redis.NewScript(`
		local countKey = KEYS[1]
		local messagesKey = KEYS[2]
		local limit = tonumber(ARGV[1])
		local message = ARGV[2]
		local ttl = tonumber(ARGV[3])

		local current = tonumber(redis.call('GET', countKey) or '0')
		if current >= limit then
			return {current, 'limit_reached'}
		end

		local newCount = redis.call('INCR', countKey)
		redis.call('RPUSH', messagesKey, message)

		if ttl > 0 then
			redis.call('EXPIRE', countKey, ttl)
			redis.call('EXPIRE', messagesKey, ttl)
		end

		return {newCount, 'ok'}
	`)
}

// GetUsage implements lettergate.Store
func (s *Store) GetUsage(ctx context.Context, userID string, window lettergate.Window) (*lettergate.UsageRecord, error) {
	countKey, messagesKey := s.keys(userID, window)

	count, err := s.client.Get(ctx, countKey).Int()
	if err == redis.Nil {
		return nil, nil // No usage yet is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get usage count: %w", err)
	}

	raw, err := s.client.LRange(ctx, messagesKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	messages := make([]lettergate.Message, 0, len(raw))
	for _, item := range raw {
		var msg lettergate.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, msg)
	}

	rec := &lettergate.UsageRecord{
		UserID:       userID,
		Window:       window,
		MessageCount: count,
		Messages:     messages,
	}
	if n := len(messages); n > 0 {
		rec.UpdatedAt = messages[n-1].Timestamp
	}
	return rec, nil
}

// AppendGrant implements lettergate.Store via the Lua script
func (s *Store) AppendGrant(ctx context.Context, req *lettergate.GrantRequest) (int, error) {
	if req == nil || req.UserID == "" {
		return 0, fmt.Errorf("invalid grant request")
	}

	message, err := json.Marshal(req.Message)
	if err != nil {
		return 0, fmt.Errorf("failed to encode message: %w", err)
	}

	countKey, messagesKey := s.keys(req.UserID, req.Window)
	ttl := int(s.config.RecordTTL / time.Second)

	res, err := s.appendGrant.Run(ctx, s.client,
		[]string{countKey, messagesKey},
		req.Limit, string(message), ttl,
	).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to run append script: %w", err)
	}

	parts, ok := res.([]interface{})
	if !ok || len(parts) != 2 {
		return 0, fmt.Errorf("unexpected script result: %v", res)
	}
	count, ok := parts[0].(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script count: %v", parts[0])
	}
	status, _ := parts[1].(string)

	if status == "limit_reached" {
		return int(count), lettergate.ErrLimitReached
	}
	return int(count), nil
}

func (s *Store) keys(userID string, window lettergate.Window) (string, string) {
	base := fmt.Sprintf("%susage:%s:%s", s.config.KeyPrefix, userID, window.Key())
	return base + ":count", base + ":messages"
}
