// Package localfs implements kvstore.Store on top of the local filesystem,
// matching the on-disk layout `<LOCAL_STORAGE_DIR>/key_value_stores/<storeId>/<key>.<ext>`.
package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/scrapeforge/crawlcore/internal/corekit"
	"github.com/scrapeforge/crawlcore/pkg/bufpool"
	"github.com/scrapeforge/crawlcore/pkg/kvstore"
)

// Store is a directory-backed kvstore.Store: one file per key, named
// `<key>.<ext>` where ext is derived from the record's content type.
type Store struct {
	dir string
}

// New creates (if needed) and opens a store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, corekit.NewTransientError("failed to create kv store directory", dir, err)
	}
	return &Store{dir: dir}, nil
}

func extFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "json"):
		return "json"
	case strings.Contains(contentType, "text"):
		return "txt"
	case contentType == "":
		return "bin"
	default:
		return "bin"
	}
}

// pathFor returns the on-disk path for key with the given extension; the
// extension is chosen at write time by content type, and findExisting globs
// across extensions to locate an already-written record.
func (s *Store) pathFor(key, ext string) string {
	return filepath.Join(s.dir, key+"."+ext)
}

func (s *Store) findExisting(key string) (string, bool) {
	matches, _ := filepath.Glob(filepath.Join(s.dir, key+".*"))
	if len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

// GetRecord implements kvstore.Store.
func (s *Store) GetRecord(_ context.Context, key string) ([]byte, bool, error) {
	if !kvstore.ValidateKey(key) {
		return nil, false, corekit.NewInvalidInputError("invalid kv store key", key)
	}
	path, ok := s.findExisting(key)
	if !ok {
		return nil, false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, corekit.NewTransientError("failed to open kv record", key, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, false, corekit.NewTransientError("failed to stat kv record", key, err)
	}

	// Read through the pooled buffer to avoid a throwaway allocation for
	// the common small-record case; the returned slice is still a fresh
	// copy since the pooled buffer is reused after this call.
	size := int(info.Size())
	scratch := bufpool.Get(size)
	defer bufpool.Put(scratch)

	if _, err := io.ReadFull(f, scratch); err != nil {
		return nil, false, corekit.NewTransientError("failed to read kv record", key, err)
	}
	data := make([]byte, size)
	copy(data, scratch)
	return data, true, nil
}

// SetRecord implements kvstore.Store.
func (s *Store) SetRecord(_ context.Context, key string, value []byte, contentType string) error {
	if !kvstore.ValidateKey(key) {
		return corekit.NewInvalidInputError("invalid kv store key", key)
	}
	if existing, ok := s.findExisting(key); ok {
		if err := os.Remove(existing); err != nil && !os.IsNotExist(err) {
			return corekit.NewTransientError("failed to replace kv record", key, err)
		}
	}
	path := s.pathFor(key, extFor(contentType))
	if err := os.WriteFile(path, value, 0o644); err != nil {
		return corekit.NewTransientError("failed to write kv record", key, err)
	}
	return nil
}

// DeleteRecord implements kvstore.Store. Deleting an absent key is a no-op.
func (s *Store) DeleteRecord(_ context.Context, key string) error {
	path, ok := s.findExisting(key)
	if !ok {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return corekit.NewTransientError("failed to delete kv record", key, err)
	}
	return nil
}

// ListKeys implements kvstore.Store.
func (s *Store) ListKeys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, corekit.NewTransientError("failed to list kv store", s.dir, err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		keys = append(keys, strings.TrimSuffix(name, filepath.Ext(name)))
	}
	return keys, nil
}
