package verificationlog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fatflowers/matchday/internal/models"
	"github.com/fatflowers/matchday/pkg/logctx"
	"github.com/fatflowers/matchday/pkg/tool"
	"github.com/fatflowers/matchday/pkg/types"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// filterable lists the columns admins may filter and sort on.
var filterable = map[string]bool{
	"provider_id": true,
	"user_id":     true,
	"trace_id":    true,
	"session_id":  true,
	"plan_id":     true,
	"error_code":  true,
	"status":      true,
	"created_at":  true,
}

// ErrInvalidRequest wraps filter, sort and paging problems in a scan request.
var ErrInvalidRequest = errors.New("verificationlog: invalid scan request")

// IsInvalidRequest reports whether err was caused by the request itself.
func IsInvalidRequest(err error) bool { return errors.Is(err, ErrInvalidRequest) }

type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse struct {
	Items []*models.VerificationLog `json:"items"`
	Total int64                     `json:"total"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.SugaredLogger
	pending sync.WaitGroup
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save asynchronously persists a verification audit row. Nil input is ignored.
func (s *Service) Save(ctx context.Context, entry *models.VerificationLog) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save verification log: %v", err)
		}
	}()
}

// Wait blocks until queued saves have finished.
func (s *Service) Wait() { s.pending.Wait() }

// normalize applies paging defaults and checks client supplied columns.
func (r *ScanRequest) normalize() error {
	if r.Size <= 0 {
		r.Size = 10
	}
	if r.Size > 200 {
		r.Size = 200
	}
	if r.From < 0 {
		r.From = 0
	}
	for _, f := range r.Filters {
		if f == nil {
			return fmt.Errorf("%w: nil filter", ErrInvalidRequest)
		}
		if err := f.Validate(filterable); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	if r.SortBy == "" {
		r.SortBy = "created_at"
	}
	if !filterable[r.SortBy] {
		return fmt.Errorf("%w: sort field %q is not allowed", ErrInvalidRequest, r.SortBy)
	}
	return nil
}

// Scan lists audit rows for the admin console.
func (s *Service) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if err := req.normalize(); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Model(&models.VerificationLog{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd(req.Filters)}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count verification logs: %w", err)
	}

	var rows []*models.VerificationLog
	q := tx.Limit(req.Size).Offset(req.From).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list verification logs: %w", err)
	}
	return &ScanResponse{Items: rows, Total: total}, nil
}
