// Package config loads agromix settings from .env files and AGROMIX_*
// environment variables. Process environment wins over file values.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"agromix/internal/blob"
	"agromix/internal/core"
)

const (
	defaultHTTPAddr = ":8080"
	envPrefix       = "AGROMIX_"
)

// Config is the resolved process configuration.
type Config struct {
	HTTPAddr  string
	LogLevel  slog.Level
	JWTSecret string
	Storage   core.StorageConfig
}

// Load reads the given .env files (".env" when none are named; a missing
// default file is ignored) and resolves the configuration.
func Load(files ...string) (Config, error) {
	var values map[string]string
	if len(files) == 0 {
		fileValues, err := godotenv.Read()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read .env: %w", err)
		}
		values = fileValues
	} else {
		fileValues, err := godotenv.Read(files...)
		if err != nil {
			return Config{}, fmt.Errorf("read env files: %w", err)
		}
		values = fileValues
	}
	return FromLookup(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	})
}

// FromLookup resolves the configuration through lookup, which receives full
// variable names such as AGROMIX_HTTP_ADDR.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	r := reader{lookup: lookup}
	cfg := Config{
		HTTPAddr:  r.str("HTTP_ADDR", defaultHTTPAddr),
		JWTSecret: r.str("JWT_SECRET", ""),
		Storage: core.StorageConfig{
			LocalDriver: core.LocalDriver(strings.ToLower(r.str("LOCAL_DRIVER", string(core.LocalSQLite)))),
			SQLitePath:  r.str("SQLITE_PATH", ""),
			FSRoot:      r.str("FS_ROOT", ""),
			S3: blob.S3Config{
				Bucket:          r.str("S3_BUCKET", ""),
				Region:          r.str("S3_REGION", ""),
				Endpoint:        r.str("S3_ENDPOINT", ""),
				Prefix:          r.str("S3_PREFIX", ""),
				AccessKeyID:     r.str("S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: r.str("S3_SECRET_ACCESS_KEY", ""),
				PathStyle:       r.boolean("S3_PATH_STYLE"),
			},
			RemoteDriver:         core.RemoteDriver(strings.ToLower(r.str("REMOTE_DRIVER", string(core.RemoteNone)))),
			PostgresDSN:          r.str("POSTGRES_DSN", ""),
			PostgresAutoMigrate:  r.boolean("POSTGRES_AUTO_MIGRATE"),
			FirestoreProject:     r.str("FIRESTORE_PROJECT", ""),
			FirestoreCredentials: r.str("FIRESTORE_CREDENTIALS", ""),
		},
	}
	if level, ok := lookup(envPrefix + "LOG_LEVEL"); ok && level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			r.errs = append(r.errs, fmt.Errorf("%sLOG_LEVEL: %w", envPrefix, err))
		}
	}
	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks that the selected drivers have what they need.
func (c Config) Validate() error {
	switch c.Storage.LocalDriver {
	case core.LocalMemory, core.LocalSQLite, core.LocalFS:
	case core.LocalS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("%sS3_BUCKET is required for the s3 local driver", envPrefix)
		}
	default:
		return fmt.Errorf("unknown %sLOCAL_DRIVER %q", envPrefix, c.Storage.LocalDriver)
	}
	switch c.Storage.RemoteDriver {
	case core.RemoteNone, core.RemotePostgres:
	case core.RemoteFirestore:
		if c.Storage.FirestoreProject == "" {
			return fmt.Errorf("%sFIRESTORE_PROJECT is required for the firestore remote driver", envPrefix)
		}
	default:
		return fmt.Errorf("unknown %sREMOTE_DRIVER %q", envPrefix, c.Storage.RemoteDriver)
	}
	return nil
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) str(name, fallback string) string {
	if v, ok := r.lookup(envPrefix + name); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (r *reader) boolean(name string) bool {
	v := r.str(name, "")
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
	}
	return b
}
