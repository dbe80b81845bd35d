// Package sqlqueue implements requestqueue.Backend on a transactional SQL
// database (SQLite via gorm for single-process deployments, Postgres for
// deployments that share one queue across multiple processes), an
// alternative to localfs/badgerqueue for operators who want atomic
// multi-row updates across reclaim/markHandled batches.
package sqlqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/scrapeforge/crawlcore/internal/corekit"
	"github.com/scrapeforge/crawlcore/pkg/request"
	"github.com/scrapeforge/crawlcore/pkg/requestqueue"
)

// Driver selects the SQL dialect backing a Backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Config configures a sqlqueue.Backend.
type Config struct {
	Driver  Driver
	DSN     string // sqlite file path, or a postgres connection string
	QueueID string
}

// row is the gorm model backing one request in the sqlqueue_requests table.
type row struct {
	ID        string `gorm:"primaryKey"`
	QueueID   string `gorm:"index:sqlqueue_requests_queue_unique_key,unique,priority:1"`
	UniqueKey string `gorm:"index:sqlqueue_requests_queue_unique_key,unique,priority:2"`
	OrderNo   int64
	Handled   bool
	HandledAt *time.Time
	Data      string // JSON-encoded request.Request
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (row) TableName() string { return "sqlqueue_requests" }

// Backend is a gorm-backed requestqueue.Backend. Rows from other queue ids
// sharing the same table are invisible to this Backend's queries.
type Backend struct {
	db      *gorm.DB
	queueID string
}

// Open opens (creating and migrating if absent) a SQL-backed queue backend.
func Open(cfg Config) (*Backend, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(cfg.DSN)
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("sqlqueue: unknown driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, corekit.NewTransientError("failed to open sql queue database", cfg.DSN, err)
	}

	if cfg.Driver == DriverPostgres {
		if err := runPostgresMigrations(cfg.DSN); err != nil {
			return nil, err
		}
	} else if err := db.AutoMigrate(&row{}); err != nil {
		return nil, corekit.NewTransientError("failed to migrate sql queue schema", cfg.DSN, err)
	}

	return &Backend{db: db, queueID: cfg.QueueID}, nil
}

// Close releases the underlying database handle.
func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (b *Backend) toRow(req *request.Request, orderNo int64) (*row, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return &row{
		ID:        req.ID,
		QueueID:   b.queueID,
		UniqueKey: req.UniqueKey,
		OrderNo:   orderNo,
		Handled:   req.IsHandled(),
		HandledAt: req.HandledAt,
		Data:      string(data),
	}, nil
}

func fromRow(r *row) (*request.Request, error) {
	var req request.Request
	if err := json.Unmarshal([]byte(r.Data), &req); err != nil {
		return nil, err
	}
	req.OrderNo = r.OrderNo
	return &req, nil
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

// AddRequest implements requestqueue.Backend.
func (b *Backend) AddRequest(ctx context.Context, req *request.Request, forefront bool) (bool, bool, error) {
	var wasAlreadyPresent, wasAlreadyHandled bool
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing row
		err := tx.Where("queue_id = ? AND unique_key = ?", b.queueID, req.UniqueKey).First(&existing).Error
		if err == nil {
			wasAlreadyPresent = true
			wasAlreadyHandled = existing.Handled
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		orderNo := nextOrderNo(forefront)
		req.OrderNo = orderNo
		newRow, err := b.toRow(req, orderNo)
		if err != nil {
			return err
		}
		return tx.Create(newRow).Error
	})
	if err != nil {
		return false, false, corekit.NewTransientError("failed to add request", req.ID, err)
	}
	return wasAlreadyPresent, wasAlreadyHandled, nil
}

// GetRequest implements requestqueue.Backend.
func (b *Backend) GetRequest(ctx context.Context, id string) (*request.Request, bool, error) {
	var r row
	err := b.db.WithContext(ctx).Where("queue_id = ? AND id = ?", b.queueID, id).First(&r).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, corekit.NewTransientError("failed to get request", id, err)
	}
	req, err := fromRow(&r)
	if err != nil {
		return nil, false, corekit.NewInvalidInputError("corrupt sql queue row", id)
	}
	return req, true, nil
}

// UpdateRequest implements requestqueue.Backend.
func (b *Backend) UpdateRequest(ctx context.Context, req *request.Request, forefront bool) error {
	orderNo := req.OrderNo
	if !req.IsHandled() {
		orderNo = nextOrderNo(forefront)
		req.OrderNo = orderNo
	}
	newRow, err := b.toRow(req, orderNo)
	if err != nil {
		return corekit.NewInvalidInputError("failed to encode request", req.ID)
	}

	err = b.db.WithContext(ctx).Model(&row{}).
		Where("queue_id = ? AND id = ?", b.queueID, req.ID).
		Updates(map[string]any{
			"order_no":   newRow.OrderNo,
			"handled":    newRow.Handled,
			"handled_at": newRow.HandledAt,
			"data":       newRow.Data,
		}).Error
	if err != nil {
		return corekit.NewTransientError("failed to update request", req.ID, err)
	}
	return nil
}

// GetHead implements requestqueue.Backend. A SQL-backed queue may be shared
// by multiple processes, so hadMultipleClients is always true.
func (b *Backend) GetHead(ctx context.Context, limit int) ([]requestqueue.HeadItem, time.Time, bool, error) {
	q := b.db.WithContext(ctx).Model(&row{}).
		Where("queue_id = ? AND handled = ?", b.queueID, false).
		Order("order_no ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []row
	if err := q.Find(&rows).Error; err != nil {
		return nil, time.Time{}, false, corekit.NewTransientError("failed to list queue head", "", err)
	}

	items := make([]requestqueue.HeadItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, requestqueue.HeadItem{ID: r.ID, UniqueKey: r.UniqueKey})
	}
	return items, time.Now(), true, nil
}

// Drop implements requestqueue.Backend.
func (b *Backend) Drop(ctx context.Context) error {
	err := b.db.WithContext(ctx).Where("queue_id = ?", b.queueID).Delete(&row{}).Error
	if err != nil {
		return corekit.NewTransientError("failed to drop queue", b.queueID, err)
	}
	return nil
}
