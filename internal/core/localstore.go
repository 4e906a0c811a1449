package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"agromix/pkg/domain"
)

const (
	// LocalHistoryLimit caps each local collection; older entries are evicted.
	LocalHistoryLimit = 100
	// AnonymousOwner names the collection used when no owner is known.
	AnonymousOwner = "anonymous"

	localKeyPrefix = "agromix"
)

// LocalKey returns the key-value key of the collection for (kind, owner).
func LocalKey(kind domain.EntityKind, ownerID string) string {
	if ownerID == "" {
		ownerID = AnonymousOwner
	}
	return fmt.Sprintf("%s:%s:%s", localKeyPrefix, kind, ownerID)
}

// LocalStore keeps one JSON-array collection per (entity kind, owner) on top
// of a KeyValueStore, newest first and capped at LocalHistoryLimit.
type LocalStore struct {
	kv     domain.KeyValueStore
	limit  int
	logger Logger
	mu     sync.Mutex
}

// NewLocalStore wraps a key-value store.
func NewLocalStore(kv domain.KeyValueStore, logger Logger) *LocalStore {
	if logger == nil {
		logger = NopLogger{}
	}
	return &LocalStore{kv: kv, limit: LocalHistoryLimit, logger: logger}
}

// Load returns the raw collection for (kind, owner). A missing or corrupt
// collection loads as empty.
func (s *LocalStore) Load(ctx context.Context, kind domain.EntityKind, ownerID string) ([]json.RawMessage, error) {
	return s.load(ctx, LocalKey(kind, ownerID))
}

// Prepend inserts item at the head of the collection, evicting past the cap.
func (s *LocalStore) Prepend(ctx context.Context, kind domain.EntityKind, ownerID string, item json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := LocalKey(kind, ownerID)
	items, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	items = append([]json.RawMessage{item}, items...)
	if len(items) > s.limit {
		s.logger.Debug("local collection trimmed", "key", key, "evicted", len(items)-s.limit)
		items = items[:s.limit]
	}
	return s.save(ctx, key, items)
}

// Replace rewrites the item whose id matches. found is false when no item has
// that id, in which case nothing is written.
func (s *LocalStore) Replace(ctx context.Context, kind domain.EntityKind, ownerID, id string, fn func(json.RawMessage) (json.RawMessage, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := LocalKey(kind, ownerID)
	items, err := s.load(ctx, key)
	if err != nil {
		return false, err
	}
	for i, item := range items {
		if itemID(item) != id {
			continue
		}
		updated, err := fn(item)
		if err != nil {
			return true, err
		}
		items[i] = updated
		return true, s.save(ctx, key, items)
	}
	return false, nil
}

// Remove deletes the item with id. Removing a missing id is a no-op.
func (s *LocalStore) Remove(ctx context.Context, kind domain.EntityKind, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := LocalKey(kind, ownerID)
	items, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, item := range items {
		if itemID(item) != id {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(items) {
		return nil
	}
	if len(kept) == 0 {
		return s.kv.Remove(ctx, key)
	}
	return s.save(ctx, key, kept)
}

func (s *LocalStore) load(ctx context.Context, key string) ([]json.RawMessage, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("local get %s: %w", key, err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logger.Warn("discarding corrupt local collection", "key", key, "error", err)
		return nil, nil
	}
	return items, nil
}

func (s *LocalStore) save(ctx context.Context, key string, items []json.RawMessage) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("local set %s: %w", key, err)
	}
	return nil
}

func itemID(item json.RawMessage) string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(item, &probe); err != nil {
		return ""
	}
	return probe.ID
}
