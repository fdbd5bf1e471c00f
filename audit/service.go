// Package audit records admin mutations asynchronously.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kasuganosora/questfolio/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	queueSize  = 1024
	batchSize  = 100
	flushEvery = 2 * time.Second
)

// Entry holds one audit event to be logged.
type Entry struct {
	TraceID    string
	AccountID  *int64
	Action     string // e.g. "POST /api/admin/quests"
	EntityKind string
	EntityID   string
	Request    interface{}
	Error      string
	IP         string
	DurationMs int
}

// Service logs audit entries asynchronously in batches.
type Service struct {
	db       *gorm.DB
	ch       chan *model.AuditLog
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.AuditLog, queueSize),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues an audit entry for async DB write. Entries are dropped with a
// warning when the queue is full.
func (svc *Service) Log(e Entry) {
	record := &model.AuditLog{
		TraceID:    e.TraceID,
		AccountID:  e.AccountID,
		Action:     e.Action,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		Error:      e.Error,
		IP:         e.IP,
		DurationMs: e.DurationMs,
	}
	if e.Request != nil {
		if raw, err := toJSON(e.Request); err == nil {
			record.Request = raw
		}
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("audit channel full, dropping entry",
			zap.String("action", e.Action))
	}
}

func toJSON(v interface{}) (datatypes.JSON, error) {
	switch r := v.(type) {
	case json.RawMessage:
		if json.Valid(r) {
			return datatypes.JSON(r), nil
		}
		return json.Marshal(string(r))
	case []byte:
		if json.Valid(r) {
			return datatypes.JSON(r), nil
		}
		return json.Marshal(string(r))
	}
	return json.Marshal(v)
}

// Filter selects audit rows for listing.
type Filter struct {
	EntityKind string `form:"entity_kind"`
	EntityID   string `form:"entity_id"`
	TraceID    string `form:"trace_id"`
	Limit      int    `form:"limit"`
}

// List returns recorded entries, newest first. Limit defaults to 50 and is
// capped at 500.
func (svc *Service) List(ctx context.Context, f Filter) ([]model.AuditLog, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	q := svc.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(f.Limit)
	if f.EntityKind != "" {
		q = q.Where("entity_kind = ?", f.EntityKind)
	}
	if f.EntityID != "" {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.TraceID != "" {
		q = q.Where("trace_id = ?", f.TraceID)
	}
	var out []model.AuditLog
	err := q.Find(&out).Error
	return out, err
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished or ctx is done.
func (svc *Service) Stop(ctx context.Context) {
	svc.stopOnce.Do(func() { close(svc.stopCh) })
	done := make(chan struct{})
	go func() {
		svc.wg.Wait()
		close(done)
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-done:
	case <-ctx.Done():
		svc.logger.Warn("audit stop timed out; pending entries may be lost")
	}
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Int("entries", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining entries.
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
					if len(batch) >= batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
