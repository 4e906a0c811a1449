package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agromix/pkg/domain"
)

// ErrUpdateUnsupported is returned by Update for entity kinds that are
// immutable once saved (calculations and operations).
var ErrUpdateUnsupported = errors.New("update not supported for this entity")

// PersistenceError is returned to callers when the remote store rejected an
// operation for a reason other than a missing table, or when the local
// fallback itself failed.
type PersistenceError struct {
	Op     string
	Entity domain.EntityKind
	Info   PersistenceErrorInfo
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %s: %s", e.Op, e.Entity, e.Info.Kind, e.Info.DiagnosticDetail)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// UserMessage is the message safe to show to the end user.
func (e *PersistenceError) UserMessage() string { return e.Info.UserMessage }

// EntityConfig describes how one entity kind is stored.
type EntityConfig[T any] struct {
	Kind domain.EntityKind
	// Table defaults to Kind.Table().
	Table string
	// Updatable enables Update; other kinds only support save and delete.
	Updatable bool
	// Meta exposes the entity's embedded record metadata.
	Meta        func(*T) *domain.Record
	Serialize   func(T) (json.RawMessage, error)
	Deserialize func(json.RawMessage) (T, error)
}

// Facade persists one entity kind: remote first, local when the remote table
// is not provisioned or no remote is configured.
type Facade[T any] struct {
	cfg    EntityConfig[T]
	remote domain.RemoteStore
	local  *LocalStore
	opts   serviceOptions
}

// NewFacade builds a facade over local storage and the remote configured via
// WithRemoteStore, if any.
func NewFacade[T any](cfg EntityConfig[T], local *LocalStore, opts ...Option) *Facade[T] {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.Table == "" {
		cfg.Table = cfg.Kind.Table()
	}
	if cfg.Serialize == nil {
		cfg.Serialize = func(v T) (json.RawMessage, error) { return json.Marshal(v) }
	}
	if cfg.Deserialize == nil {
		cfg.Deserialize = func(raw json.RawMessage) (T, error) {
			var v T
			err := json.Unmarshal(raw, &v)
			return v, err
		}
	}
	return &Facade[T]{cfg: cfg, remote: o.remote, local: local, opts: o}
}

// Kind returns the entity kind handled by the facade.
func (f *Facade[T]) Kind() domain.EntityKind { return f.cfg.Kind }

// Save stores a new entity for ownerID and returns it with its id and
// timestamps set.
func (f *Facade[T]) Save(ctx context.Context, ownerID string, entity T) (saved T, err error) {
	ctx, done := f.begin(ctx, "save")
	defer func() { done(err) }()

	now := f.opts.clock.Now()
	meta := f.cfg.Meta(&entity)
	*meta = domain.Record{OwnerID: ownerID, CreatedAt: now, UpdatedAt: now}

	if f.remoteEnabled(ownerID) {
		payload, err := f.remotePayload(entity)
		if err != nil {
			return saved, err
		}
		id, rerr := f.remote.Insert(ctx, f.cfg.Table, ownerID, payload, now)
		if rerr == nil {
			meta.ID = id
			f.publish(domain.ActionCreate, ownerID, id, entity)
			return entity, nil
		}
		if perr := f.remoteFailure(ctx, "save", rerr); perr != nil {
			return saved, perr
		}
	}

	meta.ID = f.opts.newID()
	raw, err := f.cfg.Serialize(entity)
	if err != nil {
		return saved, fmt.Errorf("encode %s: %w", f.cfg.Kind, err)
	}
	if err := f.local.Prepend(ctx, f.cfg.Kind, ownerID, raw); err != nil {
		return saved, f.localFailure("save", err)
	}
	f.publish(domain.ActionCreate, ownerID, meta.ID, entity)
	return entity, nil
}

// List returns the owner's entities, most recent first. It never fails: remote
// errors fall back to the local collection and local errors yield an empty list.
func (f *Facade[T]) List(ctx context.Context, ownerID string) []T {
	ctx, done := f.begin(ctx, "list")

	if f.remoteEnabled(ownerID) {
		records, err := f.remote.ListByOwner(ctx, f.cfg.Table, ownerID)
		if err == nil {
			done(nil)
			return f.decodeRemote(records)
		}
		info := Classify(err)
		f.opts.logger.Warn("remote list failed, reading local collection",
			"entity", f.cfg.Kind, "kind", info.Kind, "detail", info.DiagnosticDetail)
		f.opts.metrics.RecordFallback(ctx, f.cfg.Kind, "list", info.Kind)
	}

	items, err := f.local.Load(ctx, f.cfg.Kind, ownerID)
	done(err)
	if err != nil {
		f.opts.logger.Error("local list failed", "entity", f.cfg.Kind, "error", err)
		return []T{}
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, err := f.cfg.Deserialize(item)
		if err != nil {
			f.opts.logger.Warn("skipping undecodable local item", "entity", f.cfg.Kind, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}

// Update overwrites the top-level fields present in patch (a JSON object).
// Record metadata in the patch is ignored.
func (f *Facade[T]) Update(ctx context.Context, ownerID, id string, patch json.RawMessage) (err error) {
	if !f.cfg.Updatable {
		return ErrUpdateUnsupported
	}
	ctx, done := f.begin(ctx, "update")
	defer func() { done(err) }()

	patch, err = stripRecordFields(patch)
	if err != nil {
		return fmt.Errorf("decode %s patch: %w", f.cfg.Kind, err)
	}
	now := f.opts.clock.Now()

	if f.remoteEnabled(ownerID) {
		rerr := f.remote.Update(ctx, f.cfg.Table, ownerID, id, patch, now)
		if rerr == nil {
			f.publishRaw(domain.ActionUpdate, ownerID, id, patch)
			return nil
		}
		var notFound domain.ErrNotFound
		if errors.As(rerr, &notFound) {
			return rerr
		}
		if perr := f.remoteFailure(ctx, "update", rerr); perr != nil {
			return perr
		}
	}

	var merged json.RawMessage
	found, err := f.local.Replace(ctx, f.cfg.Kind, ownerID, id, func(item json.RawMessage) (json.RawMessage, error) {
		out, err := mergeFields(item, patch, now)
		if err != nil {
			return nil, err
		}
		if _, err := f.cfg.Deserialize(out); err != nil {
			return nil, err
		}
		merged = out
		return out, nil
	})
	if err != nil {
		return f.localFailure("update", err)
	}
	if !found {
		return domain.ErrNotFound{Entity: f.cfg.Kind, ID: id}
	}
	f.publishRaw(domain.ActionUpdate, ownerID, id, merged)
	return nil
}

// Delete removes the entity. Deleting an unknown id succeeds.
func (f *Facade[T]) Delete(ctx context.Context, ownerID, id string) (err error) {
	ctx, done := f.begin(ctx, "delete")
	defer func() { done(err) }()

	if f.remoteEnabled(ownerID) {
		rerr := f.remote.Delete(ctx, f.cfg.Table, ownerID, id)
		if rerr == nil {
			f.publishRaw(domain.ActionDelete, ownerID, id, nil)
			return nil
		}
		if perr := f.remoteFailure(ctx, "delete", rerr); perr != nil {
			return perr
		}
	}

	if err := f.local.Remove(ctx, f.cfg.Kind, ownerID, id); err != nil {
		return f.localFailure("delete", err)
	}
	f.publishRaw(domain.ActionDelete, ownerID, id, nil)
	return nil
}

// remoteEnabled is false when no remote is configured or the owner is unknown;
// remote rows are always owner-scoped.
func (f *Facade[T]) remoteEnabled(ownerID string) bool {
	return f.remote != nil && ownerID != ""
}

// remoteFailure returns nil when the operation should continue against the
// local store, which only happens for a missing remote table.
func (f *Facade[T]) remoteFailure(ctx context.Context, op string, err error) error {
	info := Classify(err)
	if info.Kind == KindTableNotFound {
		f.opts.logger.Info("remote table not provisioned, using local store",
			"entity", f.cfg.Kind, "op", op, "detail", info.DiagnosticDetail)
		f.opts.metrics.RecordFallback(ctx, f.cfg.Kind, op, info.Kind)
		return nil
	}
	f.opts.logger.Warn("remote operation failed",
		"entity", f.cfg.Kind, "op", op, "kind", info.Kind, "detail", info.DiagnosticDetail)
	return &PersistenceError{Op: op, Entity: f.cfg.Kind, Info: info, Err: err}
}

func (f *Facade[T]) localFailure(op string, err error) error {
	info := PersistenceErrorInfo{
		Kind:             KindUnknown,
		TechnicalMessage: err.Error(),
		UserMessage:      userMessages[KindUnknown],
		DiagnosticDetail: "local store: " + err.Error(),
	}
	f.opts.logger.Error("local operation failed", "entity", f.cfg.Kind, "op", op, "error", err)
	return &PersistenceError{Op: op, Entity: f.cfg.Kind, Info: info, Err: err}
}

func (f *Facade[T]) remotePayload(entity T) (json.RawMessage, error) {
	raw, err := f.cfg.Serialize(entity)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", f.cfg.Kind, err)
	}
	return stripRecordFields(raw)
}

func (f *Facade[T]) decodeRemote(records []domain.RemoteRecord) []T {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		v, err := f.cfg.Deserialize(rec.Payload)
		if err != nil {
			f.opts.logger.Warn("skipping undecodable remote row", "entity", f.cfg.Kind, "id", rec.ID, "error", err)
			continue
		}
		*f.cfg.Meta(&v) = domain.Record{ID: rec.ID, OwnerID: rec.OwnerID, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}
		out = append(out, v)
	}
	return out
}

func (f *Facade[T]) begin(ctx context.Context, op string) (context.Context, func(error)) {
	name := string(f.cfg.Kind) + "." + op
	ctx, span := f.opts.tracer.Start(ctx, name)
	started := time.Now()
	return ctx, func(err error) {
		span.End(err)
		f.opts.metrics.Observe(ctx, name, err == nil, time.Since(started))
	}
}

func (f *Facade[T]) publish(action domain.ChangeAction, ownerID, id string, entity T) {
	if f.opts.notifier == nil {
		return
	}
	payload, err := domain.NewChangePayloadFromValue(entity)
	if err != nil {
		f.opts.logger.Warn("change payload encode failed", "entity", f.cfg.Kind, "error", err)
		payload = domain.UndefinedChangePayload()
	}
	f.opts.notifier.Publish(SavedTopic(f.cfg.Kind), domain.ChangeEvent{
		Entity: f.cfg.Kind, Action: action, OwnerID: ownerID, ID: id, Payload: payload,
	})
}

func (f *Facade[T]) publishRaw(action domain.ChangeAction, ownerID, id string, raw json.RawMessage) {
	if f.opts.notifier == nil {
		return
	}
	payload := domain.UndefinedChangePayload()
	if raw != nil {
		payload = domain.NewChangePayload(raw)
	}
	f.opts.notifier.Publish(SavedTopic(f.cfg.Kind), domain.ChangeEvent{
		Entity: f.cfg.Kind, Action: action, OwnerID: ownerID, ID: id, Payload: payload,
	})
}

var recordFields = []string{"id", "owner_id", "created_at", "updated_at"}

func stripRecordFields(raw json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("expected a JSON object")
	}
	for _, k := range recordFields {
		delete(fields, k)
	}
	return json.Marshal(fields)
}

func mergeFields(base, patch json.RawMessage, updatedAt time.Time) (json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(base, &doc); err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &fields); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = make(map[string]json.RawMessage, len(fields)+1)
	}
	for k, v := range fields {
		doc[k] = v
	}
	stamp, err := json.Marshal(updatedAt)
	if err != nil {
		return nil, err
	}
	doc["updated_at"] = stamp
	return json.Marshal(doc)
}
