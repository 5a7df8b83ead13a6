// Package device manages the device set of subscriptions on behalf of users
// and administrators.
package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/subpanel/internal/app/service/devicecount"
	"github.com/fatflowers/subpanel/internal/models"
	"github.com/fatflowers/subpanel/pkg/logctx"
	"github.com/fatflowers/subpanel/pkg/metrics"
	"github.com/fatflowers/subpanel/pkg/types"
)

var (
	ErrDeviceNotFound       = errors.New("device not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrDeviceLimitReached   = errors.New("订阅设备数量已达上限")
)

var (
	filterFields = []string{"user_id", "subscription_id", "software_name", "os_name", "device_type", "is_allowed", "ip_address", "last_seen", "first_seen"}
	sortFields   = []string{"last_seen", "first_seen", "access_count", "software_name"}
)

type Service struct {
	db        *gorm.DB
	log       *zap.SugaredLogger
	counter   *devicecount.Synchronizer
	mutations *prometheus.CounterVec
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, counter *devicecount.Synchronizer, reg prometheus.Registerer) (*Service, error) {
	c, err := metrics.Register(reg, metrics.MetricsDeviceMutation, "")
	if err != nil {
		return nil, fmt.Errorf("failed to register device mutation metric: %w", err)
	}
	return &Service{db: db, log: log, counter: counter, mutations: c.(*prometheus.CounterVec)}, nil
}

type ListDevicesRequest struct {
	SubscriptionID string        `json:"subscription_id" form:"subscription_id"`
	UserID         string        `json:"user_id" form:"user_id"`
	Filters        types.Filters `json:"filters" form:"-"`
	From           int           `json:"from" form:"from"`
	Size           int           `json:"size" form:"size"`
	SortBy         string        `json:"sort_by" form:"sort_by"`
	SortOrder      string        `json:"sort_order" form:"sort_order"`
}

type ListDevicesResponse struct {
	Items []*models.Device `json:"items"`
	Total int64            `json:"total"`
}

// ListDevices lists devices newest activity first unless asked otherwise.
func (s *Service) ListDevices(ctx context.Context, req *ListDevicesRequest) (*ListDevicesResponse, error) {
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

	tx := s.db.WithContext(ctx).Model(&models.Device{})
	if req.SubscriptionID != "" {
		tx = tx.Where("subscription_id = ?", req.SubscriptionID)
	}
	if req.UserID != "" {
		tx = tx.Where("user_id = ?", req.UserID)
	}
	tx = tx.Where(req.Filters)

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count devices: %w", err)
	}

	sortBy := lo.CoalesceOrEmpty(req.SortBy, "last_seen")
	var rows []*models.Device
	err := tx.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"},
		{Column: clause.Column{Name: "id"}},
	}}).
		Limit(req.Size).
		Offset(req.From).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return &ListDevicesResponse{Items: rows, Total: total}, nil
}

func (s *Service) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	var d models.Device
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return &d, nil
}

// SetDeviceAllowed flips is_allowed without a quota check. It reports false
// when the device does not exist.
func (s *Service) SetDeviceAllowed(ctx context.Context, id string, allowed bool) (bool, error) {
	err := s.withDevice(ctx, id, func(tx *gorm.DB, d *models.Device, _ *models.Subscription) error {
		return s.setAllowed(tx, d, allowed)
	})
	if errors.Is(err, ErrDeviceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.mutations.WithLabelValues(lo.Ternary(allowed, "allow", "block")).Inc()
	logctx.FromCtx(ctx, s.log).Infow("device_allowed_set", "device_id", id, "is_allowed", allowed)
	return true, nil
}

// AllowDevice admits a blocked device if the subscription has room for it.
func (s *Service) AllowDevice(ctx context.Context, id string) error {
	err := s.withDevice(ctx, id, func(tx *gorm.DB, d *models.Device, sub *models.Subscription) error {
		if d.IsAllowed {
			return nil
		}
		var allowed int64
		if err := tx.Model(&models.Device{}).Where("subscription_id = ? AND is_allowed = ?", sub.ID, true).Count(&allowed).Error; err != nil {
			return fmt.Errorf("failed to count allowed devices: %w", err)
		}
		if allowed >= int64(sub.DeviceLimit) {
			return fmt.Errorf("%w（%d个）", ErrDeviceLimitReached, sub.DeviceLimit)
		}
		return s.setAllowed(tx, d, true)
	})
	if err != nil {
		return err
	}
	s.mutations.WithLabelValues("allow").Inc()
	logctx.FromCtx(ctx, s.log).Infow("device_allowed", "device_id", id)
	return nil
}

// PatchDevice applies a validated patch. An empty patch only checks that the
// device exists.
func (s *Service) PatchDevice(ctx context.Context, id string, patch *DevicePatch) (*models.Device, error) {
	if patch.Empty() {
		return s.GetDevice(ctx, id)
	}
	var out *models.Device
	err := s.withDevice(ctx, id, func(tx *gorm.DB, d *models.Device, _ *models.Subscription) error {
		if err := s.setAllowed(tx, d, *patch.IsAllowed); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.mutations.WithLabelValues("patch").Inc()
	return out, nil
}

// DeleteDevice removes a device. With a non-empty ownerUserID the device must
// belong to that user. It reports false when nothing was deleted.
func (s *Service) DeleteDevice(ctx context.Context, id, ownerUserID string) (bool, error) {
	err := s.withDevice(ctx, id, func(tx *gorm.DB, d *models.Device, _ *models.Subscription) error {
		if ownerUserID != "" && d.UserID != ownerUserID {
			return ErrDeviceNotFound
		}
		if err := tx.Delete(&models.Device{}, "id = ?", d.ID).Error; err != nil {
			return fmt.Errorf("failed to delete device: %w", err)
		}
		return nil
	})
	if errors.Is(err, ErrDeviceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.mutations.WithLabelValues("delete").Inc()
	logctx.FromCtx(ctx, s.log).Infow("device_deleted", "device_id", id)
	return true, nil
}

// ClearDevices deletes every device of a subscription and returns how many
// were removed.
func (s *Service) ClearDevices(ctx context.Context, subscriptionID string) (int64, error) {
	var cleared int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := lockSubscriptionByID(tx, subscriptionID)
		if err != nil {
			return err
		}
		n, err := s.clear(ctx, tx, sub.ID)
		cleared = n
		return err
	})
	if err != nil {
		return 0, err
	}
	s.mutations.WithLabelValues("clear").Add(float64(cleared))
	logctx.FromCtx(ctx, s.log).Infow("devices_cleared", "subscription_id", subscriptionID, "count", cleared)
	return cleared, nil
}

// ClearUserDevices clears the devices of every subscription owned by userID.
func (s *Service) ClearUserDevices(ctx context.Context, userID string) (int64, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).Where("user_id = ?", userID).Order("id").Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to list user subscriptions: %w", err)
	}
	var total int64
	for _, id := range ids {
		n, err := s.ClearDevices(ctx, id)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

type DeviceStats struct {
	Total   int64 `json:"total_devices"`
	Allowed int64 `json:"allowed_devices"`
	Blocked int64 `json:"blocked_devices"`
}

func (s *Service) Stats(ctx context.Context, subscriptionID string) (*DeviceStats, error) {
	var rows []struct {
		IsAllowed bool
		N         int64
	}
	err := s.db.WithContext(ctx).Model(&models.Device{}).
		Select("is_allowed, COUNT(*) AS n").
		Where("subscription_id = ?", subscriptionID).
		Group("is_allowed").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count devices: %w", err)
	}
	st := &DeviceStats{}
	for _, r := range rows {
		if r.IsAllowed {
			st.Allowed += r.N
		} else {
			st.Blocked += r.N
		}
	}
	st.Total = st.Allowed + st.Blocked
	return st, nil
}

// Clear removes every device of a subscription on tx and syncs the counter.
// The caller must hold the subscription row lock.
func (s *Service) Clear(ctx context.Context, tx *gorm.DB, subscriptionID string) (int64, error) {
	return s.clear(ctx, tx, subscriptionID)
}

func (s *Service) clear(ctx context.Context, tx *gorm.DB, subscriptionID string) (int64, error) {
	res := tx.Where("subscription_id = ?", subscriptionID).Delete(&models.Device{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clear devices: %w", res.Error)
	}
	if _, err := s.counter.Sync(ctx, tx, subscriptionID); err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// withDevice runs fn in a transaction holding the row lock of the device's
// subscription and syncs the device counter afterwards.
func (s *Service) withDevice(ctx context.Context, id string, fn func(tx *gorm.DB, d *models.Device, sub *models.Subscription) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d models.Device
		if err := tx.Where("id = ?", id).Take(&d).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDeviceNotFound
			}
			return fmt.Errorf("failed to get device: %w", err)
		}
		sub, err := lockSubscriptionByID(tx, d.SubscriptionID)
		if err != nil {
			return err
		}
		if err := fn(tx, &d, sub); err != nil {
			return err
		}
		_, err = s.counter.Sync(ctx, tx, sub.ID)
		return err
	})
}

func (s *Service) setAllowed(tx *gorm.DB, d *models.Device, allowed bool) error {
	if err := tx.Model(d).Update("is_allowed", allowed).Error; err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	d.IsAllowed = allowed
	return nil
}

func lockSubscriptionByID(tx *gorm.DB, id string) (*models.Subscription, error) {
	var sub models.Subscription
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

// Module exposes the device service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
