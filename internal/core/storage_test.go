package core

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"agromix/internal/infra/persistence/postgres"
	pgstub "agromix/internal/infra/persistence/postgres/testutil"
	"agromix/pkg/domain"
)

func TestOpenLocalStoreDrivers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cases := []StorageConfig{
		{LocalDriver: LocalMemory},
		{LocalDriver: LocalSQLite, SQLitePath: filepath.Join(dir, "local.db")},
		{SQLitePath: filepath.Join(dir, "default.db")},
		{LocalDriver: LocalFS, FSRoot: filepath.Join(dir, "fs")},
	}
	for _, cfg := range cases {
		store, err := OpenLocalStore(ctx, cfg)
		if err != nil {
			t.Fatalf("%s: open: %v", cfg.LocalDriver, err)
		}
		if err := store.Set(ctx, "agromix:recipe:u1", "[]"); err != nil {
			t.Fatalf("%s: set: %v", cfg.LocalDriver, err)
		}
		got, ok, err := store.Get(ctx, "agromix:recipe:u1")
		if err != nil || !ok || got != "[]" {
			t.Fatalf("%s: get = %q %v %v", cfg.LocalDriver, got, ok, err)
		}
		if err := CloseStore(store); err != nil {
			t.Fatalf("%s: close: %v", cfg.LocalDriver, err)
		}
	}
}

func TestOpenLocalStoreRejectsUnknownDriver(t *testing.T) {
	if _, err := OpenLocalStore(context.Background(), StorageConfig{LocalDriver: "floppy"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := OpenLocalStore(context.Background(), StorageConfig{LocalDriver: LocalS3}); err == nil {
		t.Fatalf("expected s3 without bucket to fail")
	}
}

func TestOpenRemoteStoreNone(t *testing.T) {
	for _, driver := range []RemoteDriver{"", RemoteNone} {
		store, err := OpenRemoteStore(context.Background(), StorageConfig{RemoteDriver: driver})
		if err != nil || store != nil {
			t.Fatalf("driver %q: expected nil store, got %v %v", driver, store, err)
		}
	}
	if _, err := OpenRemoteStore(context.Background(), StorageConfig{RemoteDriver: "carrier-pigeon"}); err == nil {
		t.Fatalf("expected unknown remote driver error")
	}
	if _, err := OpenRemoteStore(context.Background(), StorageConfig{RemoteDriver: RemoteFirestore}); err == nil {
		t.Fatalf("expected firestore without project to fail")
	}
}

func TestPostgresRemoteEndToEnd(t *testing.T) {
	ctx := context.Background()
	db, conn := pgstub.NewStubDB()
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	remote, err := OpenRemoteStore(ctx, StorageConfig{RemoteDriver: RemotePostgres, PostgresAutoMigrate: true})
	if err != nil {
		t.Fatalf("open remote: %v", err)
	}
	defer func() { _ = CloseStore(remote) }()

	svc, kv := newTestService(remote)
	saved, err := svc.SaveRecipe(ctx, "u1", domain.Recipe{Name: "Corn post", Input: sampleInput()})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID == "" || saved.ID == "local-1" {
		t.Fatalf("expected remote id, got %q", saved.ID)
	}
	if rows := conn.Rows("recipes"); len(rows) != 1 {
		t.Fatalf("expected one remote row, got %d", len(rows))
	}
	if keys := kv.Keys(""); len(keys) != 0 {
		t.Fatalf("remote save must not touch local store, got %v", keys)
	}
	list := svc.ListRecipes(ctx, "u1")
	if len(list) != 1 || list[0].Name != "Corn post" || list[0].OwnerID != "u1" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestPostgresUnprovisionedTableFallsBackLocally(t *testing.T) {
	ctx := context.Background()
	db, conn := pgstub.NewStubDB()
	conn.Provisioned = map[string]bool{"recipes": true}
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	remote, err := OpenRemoteStore(ctx, StorageConfig{RemoteDriver: RemotePostgres})
	if err != nil {
		t.Fatalf("open remote: %v", err)
	}
	svc, kv := newTestService(remote)
	saved, err := svc.SaveOperation(ctx, "u1", domain.Operation{OperationName: "Drone pass", AreaHa: 5, VolumeLPerHa: 10, DoseValue: 1})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID != "local-1" {
		t.Fatalf("expected local fallback id, got %q", saved.ID)
	}
	if _, ok, _ := kv.Get(ctx, LocalKey(domain.EntityOperation, "u1")); !ok {
		t.Fatalf("expected local collection written")
	}
	if list := svc.ListOperations(ctx, "u1"); len(list) != 1 {
		t.Fatalf("expected fallback list to serve local entry, got %d", len(list))
	}
}

func TestPingRemote(t *testing.T) {
	ctx := context.Background()
	if err := PingRemote(ctx, newFakeRemote()); err != nil {
		t.Fatalf("stores without a health check should report nil, got %v", err)
	}

	db, conn := pgstub.NewStubDB()
	conn.FailPing = true
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	remote, err := OpenRemoteStore(ctx, StorageConfig{RemoteDriver: RemotePostgres, PostgresDSN: "postgres://unreachable"})
	if err != nil {
		t.Fatalf("open should not dial: %v", err)
	}
	defer CloseStore(remote)
	if err := PingRemote(ctx, remote); err == nil {
		t.Fatalf("expected ping failure")
	}
}
