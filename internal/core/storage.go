package core

import (
	"context"
	"fmt"
	"io"

	"agromix/internal/blob"
	"agromix/internal/infra/persistence/firestore"
	"agromix/internal/infra/persistence/memory"
	"agromix/internal/infra/persistence/postgres"
	"agromix/internal/infra/persistence/sqlite"
	"agromix/pkg/domain"
)

// LocalDriver identifies the on-device key-value backend.
type LocalDriver string

const (
	LocalMemory LocalDriver = "memory" // in-memory only (tests / ephemeral)
	LocalSQLite LocalDriver = "sqlite" // embedded sqlite file
	LocalFS     LocalDriver = "fs"     // one file per collection
	LocalS3     LocalDriver = "s3"     // S3 / MinIO bucket
)

// RemoteDriver identifies the backend of record.
type RemoteDriver string

const (
	RemoteNone      RemoteDriver = "none"
	RemotePostgres  RemoteDriver = "postgres"
	RemoteFirestore RemoteDriver = "firestore"
)

// StorageConfig selects and configures both storage tiers.
type StorageConfig struct {
	LocalDriver LocalDriver
	SQLitePath  string
	FSRoot      string
	S3          blob.S3Config

	RemoteDriver         RemoteDriver
	PostgresDSN          string
	PostgresAutoMigrate  bool
	FirestoreProject     string
	FirestoreCredentials string
}

// OpenLocalStore returns the key-value store for cfg.LocalDriver, defaulting
// to sqlite.
func OpenLocalStore(ctx context.Context, cfg StorageConfig) (domain.KeyValueStore, error) {
	switch cfg.LocalDriver {
	case LocalMemory:
		return memory.NewStore(), nil
	case "", LocalSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case LocalFS:
		return blob.Open(ctx, blob.Config{Driver: blob.DriverFilesystem, FSRoot: cfg.FSRoot})
	case LocalS3:
		return blob.Open(ctx, blob.Config{Driver: blob.DriverS3, S3: cfg.S3})
	default:
		return nil, fmt.Errorf("unknown local storage driver %s", cfg.LocalDriver)
	}
}

// OpenRemoteStore returns the backend of record for cfg.RemoteDriver. It
// returns nil without error when no remote is configured.
func OpenRemoteStore(ctx context.Context, cfg StorageConfig) (domain.RemoteStore, error) {
	switch cfg.RemoteDriver {
	case "", RemoteNone:
		return nil, nil
	case RemotePostgres:
		store, err := postgres.NewStore(ctx, postgres.Config{
			DSN:         cfg.PostgresDSN,
			AutoMigrate: cfg.PostgresAutoMigrate,
			Tables:      remoteTables(),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case RemoteFirestore:
		store, err := firestore.NewStore(ctx, firestore.Config{
			ProjectID:       cfg.FirestoreProject,
			CredentialsFile: cfg.FirestoreCredentials,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown remote storage driver %s", cfg.RemoteDriver)
	}
}

// PingRemote checks that remote answers. Stores without a health check
// report nil. A failure is informational: the facade keeps serving and
// classifies each operation's error on its own.
func PingRemote(ctx context.Context, remote domain.RemoteStore) error {
	p, ok := remote.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

// CloseStore closes store when it holds resources.
func CloseStore(store any) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func remoteTables() []string {
	kinds := domain.EntityKinds()
	tables := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		tables = append(tables, kind.Table())
	}
	return tables
}
