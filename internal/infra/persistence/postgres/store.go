// Package postgres provides the remote backend of record over PostgreSQL. Each
// entity kind lives in its own table holding a JSONB payload scoped by owner.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"agromix/pkg/domain"
)

var _ domain.RemoteStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/agromix?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex

	tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

// Config controls how the store connects.
type Config struct {
	DSN string
	// AutoMigrate creates Tables at startup. Leave it off to let unprovisioned
	// tables surface as "relation does not exist" errors.
	AutoMigrate bool
	Tables      []string
}

// Store implements domain.RemoteStore.
type Store struct {
	db    *sql.DB
	newID func() string
}

// NewStore opens the connection pool without dialing, so an unreachable server
// surfaces per operation. With AutoMigrate the configured tables are created
// immediately, which does require the server.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.AutoMigrate {
		if err := migrate(ctx, db, cfg.Tables); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &Store{db: db, newID: uuid.NewString}, nil
}

// Ping checks that the server answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func migrate(ctx context.Context, db *sql.DB, tables []string) error {
	for _, table := range tables {
		if err := checkTable(table); err != nil {
			return err
		}
		stmts := []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	payload JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_owner_created_idx ON %s (owner_id, created_at DESC)`, table, table),
		}
		for _, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate %s: %w", table, err)
			}
		}
	}
	return nil
}

func checkTable(table string) error {
	if !tableName.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	return nil
}

// Insert implements domain.RemoteStore. The row id is generated here.
func (s *Store) Insert(ctx context.Context, table, ownerID string, payload json.RawMessage, createdAt time.Time) (string, error) {
	if err := checkTable(table); err != nil {
		return "", err
	}
	id := s.newID()
	query := fmt.Sprintf(`INSERT INTO %s (id, owner_id, payload, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`, table)
	if _, err := s.db.ExecContext(ctx, query, id, ownerID, string(payload), createdAt, createdAt); err != nil {
		return "", err
	}
	return id, nil
}

// ListByOwner implements domain.RemoteStore, newest first.
func (s *Store) ListByOwner(ctx context.Context, table, ownerID string) ([]domain.RemoteRecord, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id, owner_id, payload, created_at, updated_at FROM %s WHERE owner_id = $1 ORDER BY created_at DESC`, table)
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.RemoteRecord
	for rows.Next() {
		var rec domain.RemoteRecord
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &payload, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		rec.Payload = json.RawMessage(payload)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update implements domain.RemoteStore by merging patch into the stored
// payload. A row that does not exist for the owner yields domain.ErrNotFound.
func (s *Store) Update(ctx context.Context, table, ownerID, id string, patch json.RawMessage, updatedAt time.Time) error {
	if err := checkTable(table); err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET payload = payload || $1::jsonb, updated_at = $2 WHERE owner_id = $3 AND id = $4`, table)
	res, err := s.db.ExecContext(ctx, query, string(patch), updatedAt, ownerID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound{Entity: entityForTable(table), ID: id}
	}
	return nil
}

// Delete implements domain.RemoteStore. Deleting a missing row succeeds.
func (s *Store) Delete(ctx context.Context, table, ownerID, id string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE owner_id = $1 AND id = $2`, table)
	_, err := s.db.ExecContext(ctx, query, ownerID, id)
	return err
}

func entityForTable(table string) domain.EntityKind {
	for _, kind := range domain.EntityKinds() {
		if kind.Table() == table {
			return kind
		}
	}
	return domain.EntityKind(table)
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
