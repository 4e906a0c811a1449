// Package fs implements a key-value store with one file per key under a root
// directory.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"agromix/pkg/domain"
)

var _ domain.KeyValueStore = (*Store)(nil)

const dataSuffix = ".json"

// Store maps keys to files under root. Writes go through a temp file and a
// rename so readers never observe a partial value.
type Store struct {
	root string
}

// New returns a filesystem-backed store rooted at path, creating it if needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = "./agromix-data"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

// Root returns the directory the store writes to.
func (s *Store) Root() string { return s.root }

// sanitizeKey rejects empty keys and path traversal, then escapes the key so
// it maps to a single file name.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key contains '..'")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key")
	}
	return url.PathEscape(key), nil
}

func (s *Store) pathFor(key string) (string, error) {
	name, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, name+dataSuffix), nil
}

// Get implements domain.KeyValueStore.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return "", false, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// Set implements domain.KeyValueStore.
func (s *Store) Set(_ context.Context, key, value string) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Remove implements domain.KeyValueStore. Removing a missing key succeeds.
func (s *Store) Remove(_ context.Context, key string) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Keys lists stored keys with the given prefix.
func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, dataSuffix) || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, dataSuffix))
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
