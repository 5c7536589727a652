// Package filestore is a store.KV implementation that keeps one file per
// key under a root directory. Writes go through a temp file and rename,
// so a crash never leaves a half-written snapshot behind.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/luminote/hilite/pkg/hilite/internalerr"
)

// Store persists values as files under Root.
type Store struct {
	root string
}

// Open creates the root directory if needed and returns the store.
func Open(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("filestore: empty root: %w", internalerr.ErrInvalidInput)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create root: %w", err)
	}
	return &Store{root: root}, nil
}

// Close implements store.KV.
func (s *Store) Close() error { return nil }

// Get reads the file for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("filestore: key %q: %w", key, internalerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: read %q: %w", key, err)
	}
	return data, nil
}

// Set writes value to a temp file and renames it into place.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("filestore: write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: close temp for %q: %w", key, err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: rename %q: %w", key, err)
	}
	return nil
}

// Delete removes the file for key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("filestore: delete %q: %w", key, err)
	}
	return nil
}

// path maps a key to a filename. Escaping keeps arbitrary keys
// collision-free and reversible.
func (s *Store) path(key string) string {
	return filepath.Join(s.root, url.PathEscape(key))
}
