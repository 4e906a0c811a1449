package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RemoteRecord is one owner-scoped row returned by a RemoteStore. Payload holds
// the serialized entity without its Record metadata.
type RemoteRecord struct {
	ID        string
	OwnerID   string
	Payload   json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RemoteStore abstracts the networked backend of record. Every operation is
// scoped to a table and an owner; implementations return the backend's own
// error values so the classifier can inspect them.
type RemoteStore interface {
	// Insert stores a new row and returns the id assigned to it.
	Insert(ctx context.Context, table, ownerID string, payload json.RawMessage, createdAt time.Time) (string, error)
	// ListByOwner returns the owner's rows, most recent first.
	ListByOwner(ctx context.Context, table, ownerID string) ([]RemoteRecord, error)
	// Update overwrites the top-level payload fields present in patch.
	Update(ctx context.Context, table, ownerID, id string, patch json.RawMessage, updatedAt time.Time) error
	// Delete removes the row. Deleting a missing row is not an error.
	Delete(ctx context.Context, table, ownerID, id string) error
}

// KeyValueStore is the durable on-device boundary used by the local fallback.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// RemoteError is a structured backend failure carrying a code (SQLSTATE or
// REST error code), an optional HTTP status and a message.
type RemoteError struct {
	Code    string
	Status  int
	Message string
	Details string
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Status != 0 {
		return fmt.Sprintf("status %d: %s", e.Status, e.Message)
	}
	return e.Message
}

// ErrNotFound is returned when an update targets a record that does not exist
// for the owner.
type ErrNotFound struct {
	Entity EntityKind
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
