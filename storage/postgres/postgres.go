// Package postgres provides a PostgreSQL implementation of the
// lettergate.Store interface. This implementation uses SQL transactions with
// SELECT FOR UPDATE for atomic conditional commits.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mihaimyh/lettergate/pkg/lettergate"
)

// Schema creates the tables this store expects. Run it once per database,
// or manage the equivalent DDL with your own migration tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS letter_usage (
	user_id       TEXT        NOT NULL,
	window_key    TEXT        NOT NULL,
	message_count INTEGER     NOT NULL DEFAULT 0,
	updated_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, window_key)
);

CREATE TABLE IF NOT EXISTS letter_messages (
	user_id     TEXT        NOT NULL,
	window_key  TEXT        NOT NULL,
	seq         INTEGER     NOT NULL,
	ts          TIMESTAMPTZ NOT NULL,
	user_text   TEXT        NOT NULL,
	ai_response TEXT        NOT NULL,
	PRIMARY KEY (user_id, window_key, seq)
);
`

// Store implements lettergate.Store using PostgreSQL
type Store struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL store configuration
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// New creates a new PostgreSQL store adapter
func New(ctx context.Context, config Config) (*Store, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	// Apply pool settings
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool, config: config}, nil
}

// InitSchema creates the store's tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the PostgreSQL connection pool
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// GetUsage implements lettergate.Store
func (s *Store) GetUsage(ctx context.Context, userID string, window lettergate.Window) (*lettergate.UsageRecord, error) {
	rec := &lettergate.UsageRecord{
		UserID: userID,
		Window: window,
	}

	err := s.pool.QueryRow(ctx,
		`SELECT message_count, updated_at
			FROM letter_usage
			WHERE user_id = $1 AND window_key = $2`,
		userID, window.Key()).Scan(&rec.MessageCount, &rec.UpdatedAt)

	if err == pgx.ErrNoRows {
		return nil, nil // No usage yet is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT ts, user_text, ai_response
			FROM letter_messages
			WHERE user_id = $1 AND window_key = $2
			ORDER BY seq`,
		userID, window.Key())
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg lettergate.Message
		if err := rows.Scan(&msg.Timestamp, &msg.UserText, &msg.AIResponse); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		rec.Messages = append(rec.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	return rec, nil
}

// AppendGrant implements lettergate.Store with an atomic conditional commit
// via transaction
func (s *Store) AppendGrant(ctx context.Context, req *lettergate.GrantRequest) (int, error) {
	if req == nil || req.UserID == "" {
		return 0, fmt.Errorf("invalid grant request")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback error is safe to ignore if the transaction was committed
		_ = tx.Rollback(ctx)
	}()

	// Upsert first so the row lock below always has a row to take.
	_, err = tx.Exec(ctx,
		`INSERT INTO letter_usage (user_id, window_key, message_count, updated_at)
			VALUES ($1, $2, 0, $3)
			ON CONFLICT (user_id, window_key) DO NOTHING`,
		req.UserID, req.Window.Key(), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to ensure usage row exists: %w", err)
	}

	var current int
	err = tx.QueryRow(ctx,
		`SELECT message_count FROM letter_usage
			WHERE user_id = $1 AND window_key = $2
			FOR UPDATE`,
		req.UserID, req.Window.Key()).Scan(&current)
	if err != nil {
		return 0, fmt.Errorf("failed to lock usage row: %w", err)
	}

	if current >= req.Limit {
		return current, lettergate.ErrLimitReached
	}

	newCount := current + 1
	_, err = tx.Exec(ctx,
		`UPDATE letter_usage
			SET message_count = $3, updated_at = $4
			WHERE user_id = $1 AND window_key = $2`,
		req.UserID, req.Window.Key(), newCount, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to update usage: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO letter_messages (user_id, window_key, seq, ts, user_text, ai_response)
			VALUES ($1, $2, $3, $4, $5, $6)`,
		req.UserID, req.Window.Key(), newCount,
		req.Message.Timestamp, req.Message.UserText, req.Message.AIResponse)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	return newCount, nil
}
