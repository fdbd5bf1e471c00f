package content

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kasuganosora/questfolio/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultCallTimeout = 5 * time.Second

// Entity kinds, used in errors, change events and association calls.
const (
	KindProject   = "project"
	KindQuest     = "quest"
	KindSubQuest  = "subquest"
	KindIssue     = "issue"
	KindPage      = "page"
	KindTag       = "tag"
	KindItem      = "inventory_item"
	KindCharacter = "character"
)

// Change describes a committed mutation.
type Change struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Action string `json:"action"` // create | update | delete
}

// Notifier is called after a mutation commits.
type Notifier func(ctx context.Context, ch Change)

// Renderer turns page markdown into HTML.
type Renderer interface {
	Render(markdown string) string
}

// Service implements the tag store, entity stores, association layer and
// view assembler on top of GORM.
type Service struct {
	db       *gorm.DB
	cfg      config.ContentConfig
	logger   *zap.Logger
	renderer Renderer
	notify   Notifier
}

// NewService creates a content Service.
func NewService(db *gorm.DB, cfg config.ContentConfig, logger *zap.Logger) *Service {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.HomeRecentPages <= 0 {
		cfg.HomeRecentPages = 5
	}
	return &Service{db: db, cfg: cfg, logger: logger}
}

// SetRenderer sets the markdown renderer used by page views.
func (s *Service) SetRenderer(r Renderer) { s.renderer = r }

// SetNotifier sets the hook invoked after every committed mutation.
func (s *Service) SetNotifier(n Notifier) { s.notify = n }

// run executes fn against the database under the per-call timeout.
func (s *Service) run(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	return s.wrap(ctx, op, fn(s.db.WithContext(ctx)))
}

// tx is run inside a transaction. fn must only use the tx handle it is given.
func (s *Service) tx(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	return s.wrap(ctx, op, s.db.WithContext(ctx).Transaction(fn))
}

// wrap maps storage errors onto the content error taxonomy.
func (s *Service) wrap(ctx context.Context, op string, err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	if isUniqueViolation(err) {
		return &DuplicateError{Kind: strings.SplitN(op, ".", 2)[0]}
	}
	retryable := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	s.logger.Warn("content backend call failed",
		zap.String("op", op),
		zap.Bool("retryable", retryable),
		zap.Error(err))
	return &NetworkError{Op: op, Err: err, Retryable: retryable}
}

func (s *Service) changed(ctx context.Context, kind, id, action string) {
	if s.notify != nil {
		s.notify(ctx, Change{Kind: kind, ID: id, Action: action})
	}
}

// findByID loads one row by primary key, returning NotFoundError if absent.
func findByID[T any](db *gorm.DB, kind, id string) (*T, error) {
	var row T
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Kind: kind, ID: id}
		}
		return nil, err
	}
	return &row, nil
}

// exists reports whether a row with the given id exists in table of T.
func exists[T any](db *gorm.DB, id string) (bool, error) {
	var n int64
	if err := db.Model(new(T)).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}

// ListFilter restricts list operations. Empty fields match everything.
type ListFilter struct {
	Type       string `form:"type" json:"type"`
	Status     string `form:"status" json:"status"`
	Visibility string `form:"visibility" json:"visibility" validate:"omitempty,oneof=public private all"`
}

// apply adds the filter's WHERE clauses. typeColumn is "" for entities
// without a type.
func (f ListFilter) apply(ctx context.Context, q *gorm.DB, typeColumn string) *gorm.DB {
	if f.Type != "" && typeColumn != "" {
		q = q.Where(typeColumn+" = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	vis := f.Visibility
	if ViewerFrom(ctx).IsPublic() {
		vis = "public"
	}
	if vis != "" && vis != "all" {
		q = q.Where("visibility = ?", vis)
	}
	return q
}
