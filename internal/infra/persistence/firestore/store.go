// Package firestore provides a remote backend over Cloud Firestore: one
// collection per entity table, one document per record.
package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"agromix/pkg/domain"
)

var _ domain.RemoteStore = (*Store)(nil)

const (
	fieldOwner     = "owner_id"
	fieldPayload   = "payload"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// Config selects the project and, optionally, a service account key file.
// An empty CredentialsFile uses application default credentials or the
// emulator named by FIRESTORE_EMULATOR_HOST.
type Config struct {
	ProjectID       string
	CredentialsFile string
}

// Store implements domain.RemoteStore.
type Store struct {
	client *firestore.Client
}

// NewStore connects to Firestore.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore project id required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("open firestore: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the client.
func (s *Store) Close() error { return s.client.Close() }

// Insert implements domain.RemoteStore. Firestore assigns the document id.
func (s *Store) Insert(ctx context.Context, table, ownerID string, payload json.RawMessage, createdAt time.Time) (string, error) {
	fields, err := decodePayload(payload)
	if err != nil {
		return "", err
	}
	ref := s.client.Collection(table).NewDoc()
	if _, err := ref.Create(ctx, map[string]any{
		fieldOwner:     ownerID,
		fieldPayload:   fields,
		fieldCreatedAt: createdAt,
		fieldUpdatedAt: createdAt,
	}); err != nil {
		return "", err
	}
	return ref.ID, nil
}

// ListByOwner implements domain.RemoteStore. Documents are sorted here rather
// than with OrderBy so no composite index has to be provisioned.
func (s *Store) ListByOwner(ctx context.Context, table, ownerID string) ([]domain.RemoteRecord, error) {
	iter := s.client.Collection(table).Where(fieldOwner, "==", ownerID).Documents(ctx)
	defer iter.Stop()

	var out []domain.RemoteRecord
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		rec, err := recordFromData(doc.Ref.ID, doc.Data())
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", table, doc.Ref.ID, err)
		}
		out = append(out, rec)
	}
	sortNewestFirst(out)
	return out, nil
}

// Update implements domain.RemoteStore by overwriting the payload fields
// present in patch.
func (s *Store) Update(ctx context.Context, table, ownerID, id string, patch json.RawMessage, updatedAt time.Time) error {
	fields, err := decodePayload(patch)
	if err != nil {
		return err
	}
	ref := s.client.Collection(table).Doc(id)
	owned, err := s.ownedBy(ctx, ref, ownerID)
	if err != nil {
		return err
	}
	if !owned {
		return domain.ErrNotFound{Entity: entityForTable(table), ID: id}
	}
	_, err = ref.Update(ctx, payloadUpdates(fields, updatedAt))
	return err
}

// Delete implements domain.RemoteStore. Missing or foreign documents are left
// alone and reported as success.
func (s *Store) Delete(ctx context.Context, table, ownerID, id string) error {
	ref := s.client.Collection(table).Doc(id)
	owned, err := s.ownedBy(ctx, ref, ownerID)
	if err != nil || !owned {
		return err
	}
	_, err = ref.Delete(ctx)
	return err
}

func (s *Store) ownedBy(ctx context.Context, ref *firestore.DocumentRef, ownerID string) (bool, error) {
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	owner, _ := snap.Data()[fieldOwner].(string)
	return owner == ownerID, nil
}

func payloadUpdates(fields map[string]any, updatedAt time.Time) []firestore.Update {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	updates := make([]firestore.Update, 0, len(keys)+1)
	for _, k := range keys {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{fieldPayload, k}, Value: fields[k]})
	}
	return append(updates, firestore.Update{Path: fieldUpdatedAt, Value: updatedAt})
}

func decodePayload(raw json.RawMessage) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

func recordFromData(id string, data map[string]any) (domain.RemoteRecord, error) {
	rec := domain.RemoteRecord{ID: id}
	rec.OwnerID, _ = data[fieldOwner].(string)
	rec.CreatedAt, _ = data[fieldCreatedAt].(time.Time)
	rec.UpdatedAt, _ = data[fieldUpdatedAt].(time.Time)
	payload := data[fieldPayload]
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.RemoteRecord{}, err
	}
	rec.Payload = raw
	return rec, nil
}

func sortNewestFirst(records []domain.RemoteRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}

func entityForTable(table string) domain.EntityKind {
	for _, kind := range domain.EntityKinds() {
		if kind.Table() == table {
			return kind
		}
	}
	return domain.EntityKind(table)
}
