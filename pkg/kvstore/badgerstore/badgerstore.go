// Package badgerstore implements kvstore.Store on an embedded BadgerDB
// instance, the "LOCAL_STORAGE_DIR-but-faster" option for single-process
// deployments that want crash-safe writes without one-file-per-key overhead.
package badgerstore

import (
	badger "github.com/dgraph-io/badger/v4"

	"context"

	"github.com/scrapeforge/crawlcore/internal/corekit"
)

// Store wraps a BadgerDB handle scoped to a single key-value store id.
type Store struct {
	db     *badger.DB
	prefix []byte
}

// Open opens (creating if absent) a BadgerDB database at dir and scopes all
// keys under storeID. Each call opens its own database handle; handles are
// not shared between stores.
func Open(dir, storeID string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, corekit.NewTransientError("failed to open badger store", dir, err)
	}
	return &Store{db: db, prefix: []byte(storeID + "/")}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) key(k string) []byte {
	return append(append([]byte{}, s.prefix...), []byte(k)...)
}

// GetRecord implements kvstore.Store.
func (s *Store) GetRecord(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = append([]byte{}, val...)
			return nil
		})
	})
	if err != nil {
		return nil, false, corekit.NewTransientError("failed to read kv record", key, err)
	}
	return value, value != nil, nil
}

// SetRecord implements kvstore.Store. contentType is accepted for interface
// parity with localfs but not needed here since Badger keys carry no
// filename extension.
func (s *Store) SetRecord(_ context.Context, key string, value []byte, _ string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(key), value)
	})
	if err != nil {
		return corekit.NewTransientError("failed to write kv record", key, err)
	}
	return nil
}

// DeleteRecord implements kvstore.Store. Idempotent on an absent key.
func (s *Store) DeleteRecord(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(s.key(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return corekit.NewTransientError("failed to delete kv record", key, err)
	}
	return nil
}

// ListKeys implements kvstore.Store.
func (s *Store) ListKeys(_ context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(s.prefix); it.ValidForPrefix(s.prefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			keys = append(keys, string(k[len(s.prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, corekit.NewTransientError("failed to list kv store", "", err)
	}
	return keys, nil
}
