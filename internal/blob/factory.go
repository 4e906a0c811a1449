// Package blob wraps the object-storage backed key-value stores. It is the only
// package allowed to import internal/infra/blob; everything else depends on
// domain.KeyValueStore.
package blob

import (
	"context"
	"fmt"

	"agromix/internal/infra/blob/fs"
	infraS3 "agromix/internal/infra/blob/s3"
	"agromix/pkg/domain"
)

// Driver identifies a blob backend.
type Driver string

const (
	DriverFilesystem Driver = "fs" // one file per key (dev, single device)
	DriverS3         Driver = "s3" // S3 / MinIO compatible
)

// S3Config configures the S3 driver.
type S3Config = infraS3.Config

// Config selects and configures a blob backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open returns the key-value store for cfg.Driver, defaulting to fs.
func Open(ctx context.Context, cfg Config) (domain.KeyValueStore, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		store, err := fs.New(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverS3:
		store, err := infraS3.New(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// NewMockS3ForTests exposes the in-memory S3 mock for cross-package tests.
func NewMockS3ForTests(prefix string) domain.KeyValueStore {
	return infraS3.NewMockForTests(prefix)
}
