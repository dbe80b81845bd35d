// Package localfs implements requestqueue.Backend over the local
// filesystem: one file per request, named `<orderNo>.<id>.json`, moved to a
// `handled/` subdirectory once terminal so it drops out of head scans.
package localfs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"context"

	"github.com/scrapeforge/crawlcore/internal/corekit"
	"github.com/scrapeforge/crawlcore/pkg/request"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue"
)

// Backend is a single-process, single-writer implementation of
// requestqueue.Backend. HadMultipleClients is always false: a local
// directory has exactly one writer by construction.
type Backend struct {
	dir        string
	handledDir string

	mu       sync.Mutex
	orderSeq int64
}

// New creates (if needed) the queue's directory tree rooted at dir.
func New(dir string) (*Backend, error) {
	handledDir := filepath.Join(dir, "handled")
	if err := os.MkdirAll(handledDir, 0o755); err != nil {
		return nil, corekit.NewTransientError("failed to create queue directory", dir, err)
	}
	return &Backend{dir: dir, handledDir: handledDir}, nil
}

type fileRecord struct {
	Request *request.Request `json:"request"`
	OrderNo int64            `json:"orderNo"`
}

func (b *Backend) pendingPath(orderNo int64, id string) string {
	return filepath.Join(b.dir, strconv.FormatInt(orderNo, 10)+"."+id+".json")
}

func (b *Backend) handledPath(id string) string {
	return filepath.Join(b.handledDir, id+".json")
}

// nextOrderNo assigns a signed, time-based order number: negative and
// decreasing for forefront inserts (so they sort before everything
// existing), positive and increasing for backfront inserts.
func (b *Backend) nextOrderNo(forefront bool) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orderSeq++
	magnitude := time.Now().UnixNano() + b.orderSeq
	if forefront {
		return -magnitude
	}
	return magnitude
}

func (b *Backend) findPendingPath(id string) (string, bool) {
	matches, _ := filepath.Glob(filepath.Join(b.dir, "*."+id+".json"))
	if len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

// AddRequest implements requestqueue.Backend.
func (b *Backend) AddRequest(_ context.Context, req *request.Request, forefront bool) (bool, bool, error) {
	if _, ok := b.findPendingPath(req.ID); ok {
		return true, false, nil
	}
	if _, err := os.Stat(b.handledPath(req.ID)); err == nil {
		return true, true, nil
	}

	orderNo := b.nextOrderNo(forefront)
	req.OrderNo = orderNo
	if err := writeJSON(b.pendingPath(orderNo, req.ID), fileRecord{Request: req, OrderNo: orderNo}); err != nil {
		return false, false, err
	}
	return false, false, nil
}

// GetRequest implements requestqueue.Backend.
func (b *Backend) GetRequest(_ context.Context, id string) (*request.Request, bool, error) {
	if path, ok := b.findPendingPath(id); ok {
		rec, err := readJSON(path)
		if err != nil {
			return nil, false, err
		}
		return rec.Request, true, nil
	}
	if _, err := os.Stat(b.handledPath(id)); err == nil {
		rec, err := readJSON(b.handledPath(id))
		if err != nil {
			return nil, false, err
		}
		return rec.Request, true, nil
	}
	return nil, false, nil
}

// UpdateRequest implements requestqueue.Backend.
func (b *Backend) UpdateRequest(_ context.Context, req *request.Request, forefront bool) error {
	oldPath, existed := b.findPendingPath(req.ID)

	if req.IsHandled() {
		if existed {
			if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
				return corekit.NewTransientError("failed to remove pending request file", req.ID, err)
			}
		}
		return writeJSON(b.handledPath(req.ID), fileRecord{Request: req, OrderNo: req.OrderNo})
	}

	// Reclaim: re-sort the request by a fresh order number.
	orderNo := b.nextOrderNo(forefront)
	req.OrderNo = orderNo
	if existed {
		if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
			return corekit.NewTransientError("failed to remove stale request file", req.ID, err)
		}
	}
	return writeJSON(b.pendingPath(orderNo, req.ID), fileRecord{Request: req, OrderNo: orderNo})
}

// GetHead implements requestqueue.Backend. Always reports
// hadMultipleClients=false since a local directory is single-writer.
func (b *Backend) GetHead(_ context.Context, limit int) ([]requestqueue.HeadItem, time.Time, bool, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, time.Time{}, false, corekit.NewTransientError("failed to list queue directory", b.dir, err)
	}

	type pending struct {
		orderNo int64
		id      string
	}
	var all []pending
	var latestMod time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		parts := strings.SplitN(e.Name(), ".", 3)
		if len(parts) != 3 {
			continue
		}
		orderNo, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			continue
		}
		all = append(all, pending{orderNo: orderNo, id: parts[1]})
		if info, err := e.Info(); err == nil && info.ModTime().After(latestMod) {
			latestMod = info.ModTime()
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].orderNo < all[j].orderNo })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	items := make([]requestqueue.HeadItem, 0, len(all))
	for _, p := range all {
		path, ok := b.findPendingPath(p.id)
		if !ok {
			continue
		}
		rec, err := readJSON(path)
		if err != nil {
			continue
		}
		items = append(items, requestqueue.HeadItem{ID: p.id, UniqueKey: rec.Request.UniqueKey})
	}
	return items, latestMod, false, nil
}

// Drop implements requestqueue.Backend.
func (b *Backend) Drop(_ context.Context) error {
	if err := os.RemoveAll(b.dir); err != nil {
		return corekit.NewTransientError("failed to drop queue directory", b.dir, err)
	}
	return nil
}

func writeJSON(path string, rec fileRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return corekit.NewInvalidInputError("failed to marshal request", rec.Request.ID)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return corekit.NewTransientError("failed to write request file", path, err)
	}
	return nil
}

func readJSON(path string) (fileRecord, error) {
	var rec fileRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, corekit.NewTransientError("failed to read request file", path, err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, corekit.NewTransientError("failed to unmarshal request file", path, err)
	}
	return rec, nil
}
