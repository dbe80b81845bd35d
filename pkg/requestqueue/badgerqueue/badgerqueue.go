// Package badgerqueue implements requestqueue.Backend on an embedded
// BadgerDB instance: a durable, single-process alternative to localfs for
// deployments that want faster writes than one-file-per-request.
package badgerqueue

import (
	"context"
	"encoding/json"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/scrapeforge/crawlcore/internal/corekit"
	"github.com/scrapeforge/crawlcore/pkg/request"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue"
)

var (
	pendingPrefix = []byte("pending/")
	handledPrefix = []byte("handled/")
)

// Backend is a single-process requestqueue.Backend over BadgerDB. Pending
// requests are keyed by a time-based order prefix so a range scan over
// pendingPrefix yields queue order directly.
type Backend struct {
	db *badger.DB
}

// Open opens (creating if absent) a BadgerDB database at dir.
func Open(dir string) (*Backend, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, corekit.NewTransientError("failed to open badger queue", dir, err)
	}
	return &Backend{db: db}, nil
}

// Close releases the underlying database handle.
func (b *Backend) Close() error {
	return b.db.Close()
}

type record struct {
	Request *request.Request `json:"request"`
	OrderNo int64            `json:"orderNo"`
}

func pendingKey(orderNo int64, id string) []byte {
	// Sign-magnitude order numbers keyed lexicographically would break
	// BadgerDB's byte ordering across the sign boundary, so encode as an
	// offset unsigned value instead: negative (forefront) orderNos map
	// below the midpoint, positive (backfront) above it.
	const mid = uint64(1) << 63
	var u uint64
	if orderNo < 0 {
		u = mid - uint64(-orderNo)
	} else {
		u = mid + uint64(orderNo)
	}
	key := make([]byte, len(pendingPrefix)+8+len(id)+1)
	n := copy(key, pendingPrefix)
	for i := 7; i >= 0; i-- {
		key[n+i] = byte(u)
		u >>= 8
	}
	n += 8
	key[n] = '/'
	copy(key[n+1:], id)
	return key
}

func handledKey(id string) []byte {
	return append(append([]byte{}, handledPrefix...), []byte(id)...)
}

// AddRequest implements requestqueue.Backend.
func (b *Backend) AddRequest(_ context.Context, req *request.Request, forefront bool) (bool, bool, error) {
	var wasAlreadyPresent, wasAlreadyHandled bool
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(handledKey(req.ID)); err == nil {
			wasAlreadyPresent, wasAlreadyHandled = true, true
			return nil
		}
		existing, err := findPendingKey(txn, req.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			wasAlreadyPresent = true
			return nil
		}

		orderNo := nextOrderNo(forefront)
		req.OrderNo = orderNo
		data, err := json.Marshal(record{Request: req, OrderNo: orderNo})
		if err != nil {
			return err
		}
		return txn.Set(pendingKey(orderNo, req.ID), data)
	})
	if err != nil {
		return false, false, corekit.NewTransientError("failed to add request", req.ID, err)
	}
	return wasAlreadyPresent, wasAlreadyHandled, nil
}

var orderSeq int64

func nextOrderNo(forefront bool) int64 {
	orderSeq++
	magnitude := time.Now().UnixNano() + orderSeq
	if forefront {
		return -magnitude
	}
	return magnitude
}

func findPendingKey(txn *badger.Txn, id string) ([]byte, error) {
	suffix := []byte("/" + id)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(pendingPrefix); it.ValidForPrefix(pendingPrefix); it.Next() {
		k := it.Item().Key()
		if hasSuffix(k, suffix) {
			return append([]byte{}, k...), nil
		}
	}
	return nil, nil
}

func hasSuffix(b, suffix []byte) bool {
	if len(b) < len(suffix) {
		return false
	}
	return string(b[len(b)-len(suffix):]) == string(suffix)
}

func getRecord(txn *badger.Txn, key []byte) (*record, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	var rec record
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetRequest implements requestqueue.Backend.
func (b *Backend) GetRequest(_ context.Context, id string) (*request.Request, bool, error) {
	var result *request.Request
	err := b.db.View(func(txn *badger.Txn) error {
		if key, err := findPendingKey(txn, id); err == nil && key != nil {
			rec, err := getRecord(txn, key)
			if err != nil {
				return err
			}
			result = rec.Request
			return nil
		}
		item, err := txn.Get(handledKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var rec record
		err = item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) })
		if err != nil {
			return err
		}
		result = rec.Request
		return nil
	})
	if err != nil {
		return nil, false, corekit.NewTransientError("failed to get request", id, err)
	}
	return result, result != nil, nil
}

// UpdateRequest implements requestqueue.Backend.
func (b *Backend) UpdateRequest(_ context.Context, req *request.Request, forefront bool) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if oldKey, err := findPendingKey(txn, req.ID); err == nil && oldKey != nil {
			if delErr := txn.Delete(oldKey); delErr != nil {
				return delErr
			}
		}

		if req.IsHandled() {
			data, err := json.Marshal(record{Request: req, OrderNo: req.OrderNo})
			if err != nil {
				return err
			}
			return txn.Set(handledKey(req.ID), data)
		}

		orderNo := nextOrderNo(forefront)
		req.OrderNo = orderNo
		data, err := json.Marshal(record{Request: req, OrderNo: orderNo})
		if err != nil {
			return err
		}
		return txn.Set(pendingKey(orderNo, req.ID), data)
	})
	if err != nil {
		return corekit.NewTransientError("failed to update request", req.ID, err)
	}
	return nil
}

// GetHead implements requestqueue.Backend. It always reports
// hadMultipleClients=true, so the queue applies the modified-at recency
// check to every empty head.
func (b *Backend) GetHead(_ context.Context, limit int) ([]requestqueue.HeadItem, time.Time, bool, error) {
	var items []requestqueue.HeadItem
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(pendingPrefix); it.ValidForPrefix(pendingPrefix); it.Next() {
			if limit > 0 && len(items) >= limit {
				break
			}
			var rec record
			err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &rec) })
			if err != nil {
				continue
			}
			items = append(items, requestqueue.HeadItem{ID: rec.Request.ID, UniqueKey: rec.Request.UniqueKey})
		}
		return nil
	})
	if err != nil {
		return nil, time.Time{}, false, corekit.NewTransientError("failed to list queue head", "", err)
	}
	return items, time.Now(), true, nil
}

// Drop implements requestqueue.Backend.
func (b *Backend) Drop(_ context.Context) error {
	return b.db.DropAll()
}
