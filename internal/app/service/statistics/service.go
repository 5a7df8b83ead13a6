package statistics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/subpanel/internal/models"
	"github.com/fatflowers/subpanel/pkg/types"
)

type StatisticType string

const (
	// Access log based
	StatisticTypeDailyAccessCount StatisticType = "daily_access_count"
	StatisticTypeDailyDeniedCount StatisticType = "daily_denied_count"

	// Device based
	StatisticTypeDailyNewDeviceCount    StatisticType = "daily_new_device_count"
	StatisticTypeSoftwareDistribution   StatisticType = "software_distribution"
	StatisticTypeOSDistribution         StatisticType = "os_distribution"
	StatisticTypeDeviceTypeDistribution StatisticType = "device_type_distribution"
	StatisticTypeTotalDeviceCount       StatisticType = "total_device_count"
	StatisticTypeTotalSubscriptionCount StatisticType = "total_subscription_count"
)

var (
	accessLogItems = []StatisticType{StatisticTypeDailyAccessCount, StatisticTypeDailyDeniedCount}
	deviceItems    = []StatisticType{
		StatisticTypeDailyNewDeviceCount,
		StatisticTypeSoftwareDistribution,
		StatisticTypeOSDistribution,
		StatisticTypeDeviceTypeDistribution,
		StatisticTypeTotalDeviceCount,
	}
)

// validFilters lists, per filter field, the statistics it applies to. Items
// that do not support a requested filter come back empty.
var validFilters = map[string][]StatisticType{
	"subscription_id": append(append([]StatisticType{}, accessLogItems...), deviceItems...),
	"access_type":     accessLogItems,
	"access_time":     accessLogItems,
	"user_id":         append([]StatisticType{StatisticTypeTotalSubscriptionCount}, deviceItems...),
	"is_allowed":      deviceItems,
	"first_seen":      deviceItems,
}

type StatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type StatisticRequest struct {
	Filters   types.Filters        `json:"filters"`
	DataItems []*StatisticDataItem `json:"data_items"`
}

func (r *StatisticRequest) Validate() error {
	if len(r.DataItems) == 0 {
		return fmt.Errorf("data_items is required")
	}
	return r.Filters.Validate(lo.Keys(validFilters)...)
}

func (r *StatisticRequest) applicable(t StatisticType) bool {
	for _, f := range r.Filters {
		if f != nil && !lo.Contains(validFilters[f.Field], t) {
			return false
		}
	}
	return true
}

type StatisticResponseDataItem struct {
	Date   string `json:"date,omitempty"`
	Label  string `json:"label,omitempty"`
	Value  int64  `json:"value"`
	Value2 int64  `json:"value2,omitempty"`
	Value3 int64  `json:"value3,omitempty"`
}

type StatisticResponse struct {
	DataItems map[StatisticType][]StatisticResponseDataItem `json:"data_items"`
}

// Service computes dashboard statistics over access logs and devices.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Service { return &Service{db: db, now: time.Now} }

// dateExpr renders the YYYY-MM-DD day of a timestamp column for the
// connected dialect.
func (s *Service) dateExpr(column string) string {
	switch s.db.Dialector.Name() {
	case "postgres":
		return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD')", column)
	case "mysql":
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d')", column)
	default:
		return fmt.Sprintf("substr(%s, 1, 10)", column)
	}
}

func (s *Service) getDailyAccessCount(ctx context.Context, req *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	date := s.dateExpr("access_time")
	q := s.db.WithContext(ctx).Model(&models.AccessLog{}).
		Select(date + " AS date, access_type AS label, count(*) AS value").
		Where(req.Filters).
		Group(date).
		Group("access_type").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true}).
		Order("label")
	if err := q.Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyDeniedCount(ctx context.Context, req *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	date := s.dateExpr("access_time")
	q := s.db.WithContext(ctx).Model(&models.AccessLog{}).
		Select(date + " AS date, count(*) AS value").
		Where(req.Filters).
		Where("response_status >= ?", 400).
		Group(date).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyNewDeviceCount(ctx context.Context, req *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	date := s.dateExpr("first_seen")
	q := s.db.WithContext(ctx).Model(&models.Device{}).
		Select(date + " AS date, count(*) AS value").
		Where(req.Filters).
		Group(date).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// getDistribution counts devices per value of column; value2 is the allowed
// share.
func (s *Service) getDistribution(ctx context.Context, req *StatisticRequest, column string) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	q := s.db.WithContext(ctx).Model(&models.Device{}).
		Select("? AS label, count(*) AS value, SUM(CASE WHEN is_allowed = ? THEN 1 ELSE 0 END) AS value2", clause.Column{Name: column}, true).
		Where(req.Filters).
		Group(column).
		Order("value DESC").
		Order("label")
	if err := q.Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getTotalDeviceCount(ctx context.Context, req *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	q := s.db.WithContext(ctx).Model(&models.Device{}).
		Select("count(*) AS value, COALESCE(SUM(CASE WHEN is_allowed = ? THEN 1 ELSE 0 END), 0) AS value2, COALESCE(SUM(CASE WHEN is_allowed = ? THEN 0 ELSE 1 END), 0) AS value3", true, true).
		Where(req.Filters)
	if err := q.Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// getTotalSubscriptionCount reports all subscriptions as value and the ones
// currently usable as value2.
func (s *Service) getTotalSubscriptionCount(ctx context.Context, req *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	q := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Select("count(*) AS value, COALESCE(SUM(CASE WHEN is_active = ? AND (expire_at IS NULL OR expire_at >= ?) THEN 1 ELSE 0 END), 0) AS value2", true, s.now()).
		Where(req.Filters)
	if err := q.Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getStatistic(ctx context.Context, req *StatisticRequest, item *StatisticDataItem) ([]StatisticResponseDataItem, error) {
	switch item.ID {
	case StatisticTypeDailyAccessCount:
		return s.getDailyAccessCount(ctx, req)
	case StatisticTypeDailyDeniedCount:
		return s.getDailyDeniedCount(ctx, req)
	case StatisticTypeDailyNewDeviceCount:
		return s.getDailyNewDeviceCount(ctx, req)
	case StatisticTypeSoftwareDistribution:
		return s.getDistribution(ctx, req, "software_name")
	case StatisticTypeOSDistribution:
		return s.getDistribution(ctx, req, "os_name")
	case StatisticTypeDeviceTypeDistribution:
		return s.getDistribution(ctx, req, "device_type")
	case StatisticTypeTotalDeviceCount:
		return s.getTotalDeviceCount(ctx, req)
	case StatisticTypeTotalSubscriptionCount:
		return s.getTotalSubscriptionCount(ctx, req)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", item.ID)
	}
}

// GetStatistic computes every requested data item concurrently.
func (s *Service) GetStatistic(ctx context.Context, req *StatisticRequest) (*StatisticResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var wg sync.WaitGroup
	errChan := make(chan error, len(req.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []StatisticResponseDataItem], len(req.DataItems))

	for _, item := range req.DataItems {
		wg.Add(1)
		go func(di *StatisticDataItem) {
			defer wg.Done()
			if !req.applicable(di.ID) {
				resChan <- &lo.Entry[StatisticType, []StatisticResponseDataItem]{Key: di.ID, Value: nil}
				return
			}
			res, err := s.getStatistic(ctx, req, di)
			if err != nil {
				errChan <- fmt.Errorf("failed to compute %s: %w", di.ID, err)
				return
			}
			resChan <- &lo.Entry[StatisticType, []StatisticResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}

	go func() { wg.Wait(); close(errChan); close(resChan) }()

	results := make(map[StatisticType][]StatisticResponseDataItem)
	for i := 0; i < len(req.DataItems); i++ {
		select {
		case err := <-errChan:
			if err != nil {
				return nil, err
			}
		case entry := <-resChan:
			results[entry.Key] = entry.Value
		}
	}
	return &StatisticResponse{DataItems: results}, nil
}
