// Package accesslog is the append-only sink for access decisions.
package accesslog

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/subpanel/internal/models"
	"github.com/fatflowers/subpanel/pkg/logctx"
	"github.com/fatflowers/subpanel/pkg/tool"
	"github.com/fatflowers/subpanel/pkg/types"
)

const savepointName = "access_log"

var (
	filterFields = []string{"subscription_id", "device_id", "ip_address", "access_type", "response_status", "access_time"}
	sortFields   = []string{"access_time", "access_type", "response_status"}
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Entry is one decision to be recorded.
type Entry struct {
	SubscriptionID  string
	DeviceID        *string
	IPAddress       string
	UserAgent       string
	AccessType      string
	ResponseStatus  int
	ResponseMessage string
	AccessTime      time.Time
}

func (e *Entry) model() *models.AccessLog {
	at := e.AccessTime
	if at.IsZero() {
		at = time.Now()
	}
	return &models.AccessLog{
		ID:              tool.GenerateUUIDV7(),
		SubscriptionID:  e.SubscriptionID,
		DeviceID:        e.DeviceID,
		IPAddress:       e.IPAddress,
		UserAgent:       e.UserAgent,
		AccessType:      e.AccessType,
		ResponseStatus:  e.ResponseStatus,
		ResponseMessage: e.ResponseMessage,
		AccessTime:      at,
	}
}

// Append writes e on the caller's transaction. The insert is wrapped in a
// savepoint so that a failed write is undone on its own; failures are logged
// and never returned.
func (s *Service) Append(ctx context.Context, tx *gorm.DB, e *Entry) {
	if e == nil || e.SubscriptionID == "" {
		return
	}
	l := logctx.FromCtx(ctx, s.log)
	tx = tx.WithContext(ctx)
	if err := tx.SavePoint(savepointName).Error; err != nil {
		l.Warnw("access log savepoint failed", "err", err)
		return
	}
	if err := tx.Create(e.model()).Error; err != nil {
		l.Warnw("failed to append access log", "err", err, "subscription_id", e.SubscriptionID, "access_type", e.AccessType)
		if rbErr := tx.RollbackTo(savepointName).Error; rbErr != nil {
			l.Warnw("access log rollback to savepoint failed", "err", rbErr)
		}
	}
}

// Record writes e outside any transaction, best effort.
func (s *Service) Record(ctx context.Context, e *Entry) {
	if e == nil || e.SubscriptionID == "" {
		return
	}
	if err := s.db.WithContext(ctx).Create(e.model()).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("failed to record access log", "err", err, "subscription_id", e.SubscriptionID, "access_type", e.AccessType)
	}
}

type ListRequest struct {
	Filters   types.Filters `json:"filters"`
	From      int           `json:"from"`
	Size      int           `json:"size"`
	SortBy    string        `json:"sort_by"`
	SortOrder string        `json:"sort_order"`
}

type ListResponse struct {
	Items []*models.AccessLog `json:"items"`
	Total int64               `json:"total"`
}

func (s *Service) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if err := req.Filters.Validate(filterFields...); err != nil {
		return nil, err
	}
	if req.SortBy != "" && !lo.Contains(sortFields, req.SortBy) {
		return nil, fmt.Errorf("sort field not allowed: %s", req.SortBy)
	}
	if req.Size <= 0 {
		req.Size = 20
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.AccessLog{}).Where(req.Filters)

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count access logs: %w", err)
	}

	sortBy := lo.CoalesceOrEmpty(req.SortBy, "access_time")
	var rows []*models.AccessLog
	err := tx.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"}}}).
		Limit(req.Size).
		Offset(req.From).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list access logs: %w", err)
	}
	return &ListResponse{Items: rows, Total: total}, nil
}

// Module exposes the access log sink via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
