package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"agromix/internal/infra/persistence/memory"
	"agromix/pkg/domain"
)

// fakeRemote is an in-memory RemoteStore with per-table error injection.
type fakeRemote struct {
	mu    sync.Mutex
	seq   int
	rows  map[string][]domain.RemoteRecord
	errs  map[string]error // by table; "*" applies to every table
	calls []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{rows: map[string][]domain.RemoteRecord{}, errs: map[string]error{}}
}

func (f *fakeRemote) fail(table string, err error) { f.errs[table] = err }

func (f *fakeRemote) errFor(table string) error {
	if err, ok := f.errs[table]; ok {
		return err
	}
	return f.errs["*"]
}

func (f *fakeRemote) Insert(_ context.Context, table, ownerID string, payload json.RawMessage, createdAt time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "insert:"+table)
	if err := f.errFor(table); err != nil {
		return "", err
	}
	f.seq++
	id := fmt.Sprintf("remote-%d", f.seq)
	f.rows[table] = append(f.rows[table], domain.RemoteRecord{
		ID: id, OwnerID: ownerID, Payload: payload, CreatedAt: createdAt, UpdatedAt: createdAt,
	})
	return id, nil
}

func (f *fakeRemote) ListByOwner(_ context.Context, table, ownerID string) ([]domain.RemoteRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "list:"+table)
	if err := f.errFor(table); err != nil {
		return nil, err
	}
	var out []domain.RemoteRecord
	for _, rec := range f.rows[table] {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRemote) Update(_ context.Context, table, ownerID, id string, patch json.RawMessage, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update:"+table)
	if err := f.errFor(table); err != nil {
		return err
	}
	for i, rec := range f.rows[table] {
		if rec.ID != id || rec.OwnerID != ownerID {
			continue
		}
		merged, err := mergeFields(rec.Payload, patch, updatedAt)
		if err != nil {
			return err
		}
		stripped, err := stripRecordFields(merged)
		if err != nil {
			return err
		}
		f.rows[table][i].Payload = stripped
		f.rows[table][i].UpdatedAt = updatedAt
		return nil
	}
	return domain.ErrNotFound{Entity: domain.EntityKind(table), ID: id}
}

func (f *fakeRemote) Delete(_ context.Context, table, ownerID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete:"+table)
	if err := f.errFor(table); err != nil {
		return err
	}
	kept := f.rows[table][:0]
	for _, rec := range f.rows[table] {
		if rec.ID == id && rec.OwnerID == ownerID {
			continue
		}
		kept = append(kept, rec)
	}
	f.rows[table] = kept
	return nil
}

func tableMissing(table string) error {
	return &pgconn.PgError{Code: "42P01", Message: fmt.Sprintf("relation %q does not exist", table)}
}

type logEntry struct {
	level string
	msg   string
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) add(level, msg string) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
	l.mu.Unlock()
}

func (l *captureLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func (l *captureLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

type metricsCall struct {
	op      string
	success bool
}

type fallbackCall struct {
	entity domain.EntityKind
	op     string
	kind   ErrorKind
}

type captureMetrics struct {
	mu        sync.Mutex
	calls     []metricsCall
	fallbacks []fallbackCall
}

func (c *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	c.calls = append(c.calls, metricsCall{op: op, success: success})
	c.mu.Unlock()
}

func (c *captureMetrics) RecordFallback(_ context.Context, entity domain.EntityKind, op string, kind ErrorKind) {
	c.mu.Lock()
	c.fallbacks = append(c.fallbacks, fallbackCall{entity: entity, op: op, kind: kind})
	c.mu.Unlock()
}

func (c *captureMetrics) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

// fixedClock returns successive timestamps one second apart.
func fixedClock(start time.Time) Clock {
	var mu sync.Mutex
	next := start
	return ClockFunc(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(time.Second)
		return t
	})
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func newTestService(remote domain.RemoteStore, opts ...Option) (*Service, *memory.Store) {
	kv := memory.NewStore()
	base := []Option{
		WithClock(fixedClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))),
		WithIDGenerator(sequentialIDs("local")),
	}
	if remote != nil {
		base = append(base, WithRemoteStore(remote))
	}
	return NewService(kv, append(base, opts...)...), kv
}

func sampleInput() domain.CalculationInput {
	return domain.CalculationInput{
		AreaHa:        12.5,
		RateLPerHa:    10,
		TankCapacityL: 100,
		Products: []domain.Product{
			{Name: "Herbicide X", Mode: domain.DosePerArea, Dose: 2, Unit: domain.UnitLiter},
		},
	}
}
