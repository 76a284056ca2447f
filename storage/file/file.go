// Package file provides a filesystem implementation of the lettergate.Store
// interface. One directory per (user, day) holds one JSON file per grant,
// named by an incrementing sequence number.
//
// The filesystem has no atomic conditional write, so this store serializes
// access per (user, day) directory with an in-process mutex instead. That is
// an explicitly weaker substitute: it is only safe while a single process
// owns the data directory.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mihaimyh/lettergate/pkg/lettergate"
)

// Store implements lettergate.Store on a local directory tree
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a new filesystem store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("file: root directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file: create root: %w", err)
	}

	return &Store{
		root:  dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// GetUsage implements lettergate.Store
func (s *Store) GetUsage(ctx context.Context, userID string, window lettergate.Window) (*lettergate.UsageRecord, error) {
	dir, err := s.windowDir(userID, window)
	if err != nil {
		return nil, err
	}

	lock := s.dirLock(dir)
	lock.Lock()
	defer lock.Unlock()

	messages, err := readMessages(dir)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		return nil, nil // No usage yet is not an error
	}

	rec := &lettergate.UsageRecord{
		UserID:       userID,
		Window:       window,
		MessageCount: len(messages),
		Messages:     messages,
	}
	if n := len(messages); n > 0 {
		rec.UpdatedAt = messages[n-1].Timestamp
	}
	return rec, nil
}

// AppendGrant implements lettergate.Store. The count check and the file
// write happen under the per-directory lock.
func (s *Store) AppendGrant(ctx context.Context, req *lettergate.GrantRequest) (int, error) {
	if req == nil || req.UserID == "" {
		return 0, fmt.Errorf("invalid grant request")
	}

	dir, err := s.windowDir(req.UserID, req.Window)
	if err != nil {
		return 0, err
	}

	lock := s.dirLock(dir)
	lock.Lock()
	defer lock.Unlock()

	current, err := countGrants(dir)
	if err != nil {
		return 0, err
	}
	if current >= req.Limit {
		return current, lettergate.ErrLimitReached
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("file: create window dir: %w", err)
	}

	data, err := json.Marshal(req.Message)
	if err != nil {
		return 0, fmt.Errorf("file: marshal message: %w", err)
	}

	seq := current + 1
	path := filepath.Join(dir, grantFileName(seq))

	// O_EXCL guards against a stale count within the same process; the
	// write is awaited so the response is never sent before the record
	// is durable.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("file: create grant file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return 0, fmt.Errorf("file: write grant file: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("file: close grant file: %w", err)
	}

	return seq, nil
}

func (s *Store) windowDir(userID string, window lettergate.Window) (string, error) {
	// User IDs become path components; refuse anything that could escape.
	if userID == "" || userID == "." || userID == ".." ||
		strings.ContainsAny(userID, "/\\") {
		return "", fmt.Errorf("file: invalid user id %q", userID)
	}
	return filepath.Join(s.root, userID, window.Key()), nil
}

func (s *Store) dirLock(dir string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[dir]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[dir] = lock
	}
	return lock
}

func grantFileName(seq int) string {
	return fmt.Sprintf("%06d.json", seq)
}

// countGrants returns the number of grant files in dir; a missing directory
// counts as zero.
func countGrants(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("file: read window dir: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			count++
		}
	}
	return count, nil
}

// readMessages loads grant files in sequence order. Returns nil, nil when
// the directory does not exist.
func readMessages(dir string) ([]lettergate.Message, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("file: read window dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	sort.Strings(names)

	messages := make([]lettergate.Message, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("file: read grant file: %w", err)
		}
		var msg lettergate.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("file: decode %s: %w", name, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
