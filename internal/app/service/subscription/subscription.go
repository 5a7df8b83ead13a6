package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/subpanel/internal/app/service/device"
	"github.com/fatflowers/subpanel/internal/models"
	"github.com/fatflowers/subpanel/pkg/config"
	"github.com/fatflowers/subpanel/pkg/logctx"
	"github.com/fatflowers/subpanel/pkg/tool"
	"github.com/fatflowers/subpanel/pkg/types"
)

const keyLength = 16

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidSubscription  = errors.New("invalid subscription")
)

type Service struct {
	cfg     *config.Config
	db      *gorm.DB
	log     *zap.SugaredLogger
	devices *device.Service

	now func() time.Time
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger, devices *device.Service) *Service {
	return &Service{cfg: cfg, db: db, log: log, devices: devices, now: time.Now}
}

func (s *Service) Get(ctx context.Context, id string) (*models.Subscription, error) {
	return s.find(ctx, "id = ?", id)
}

func (s *Service) FindByKey(ctx context.Context, key string) (*models.Subscription, error) {
	return s.find(ctx, "subscription_key = ?", key)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]*models.Subscription, error) {
	var rows []*models.Subscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return rows, nil
}

func (s *Service) find(ctx context.Context, query string, arg any) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).Where(query, arg).Take(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

type CreateSubscriptionRequest struct {
	UserID string `json:"user_id"`
	// DeviceLimit defaults to subscription.default_device_limit.
	DeviceLimit *int       `json:"device_limit"`
	ExpireAt    *time.Time `json:"expire_at"`
	// IsActive defaults to true.
	IsActive   *bool  `json:"is_active"`
	OperatorID string `json:"operator_id"`
}

func (s *Service) Create(ctx context.Context, req *CreateSubscriptionRequest) (*models.Subscription, error) {
	if req == nil || req.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidSubscription)
	}
	limit := s.cfg.Subscription.DefaultDeviceLimit
	if req.DeviceLimit != nil {
		limit = *req.DeviceLimit
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: device_limit must not be negative", ErrInvalidSubscription)
	}
	key, err := tool.GenerateKey(keyLength)
	if err != nil {
		return nil, err
	}
	sub := &models.Subscription{
		ID:              tool.GenerateUUIDV7(),
		UserID:          req.UserID,
		SubscriptionKey: key,
		DeviceLimit:     limit,
		IsActive:        req.IsActive == nil || *req.IsActive,
		ExpireAt:        req.ExpireAt,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sub).Error; err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		return s.writeLog(tx, nil, sub, types.SubscriptionChangeReasonCreate, req.OperatorID, nil)
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("subscription_created", "subscription_id", sub.ID, "user_id", sub.UserID, "device_limit", sub.DeviceLimit)
	return sub, nil
}

// SubscriptionPatch updates only the fields that are set. ExtendDays renews
// the subscription from its current expiry, or from now when already expired.
type SubscriptionPatch struct {
	DeviceLimit *int       `json:"device_limit"`
	ExpireAt    *time.Time `json:"expire_at"`
	NeverExpire bool       `json:"never_expire"`
	ExtendDays  *int       `json:"extend_days"`
	IsActive    *bool      `json:"is_active"`
	OperatorID  string     `json:"operator_id"`
}

func (p *SubscriptionPatch) Validate() error {
	if p.DeviceLimit != nil && *p.DeviceLimit < 0 {
		return fmt.Errorf("%w: device_limit must not be negative", ErrInvalidSubscription)
	}
	if p.ExtendDays != nil && *p.ExtendDays <= 0 {
		return fmt.Errorf("%w: extend_days must be positive", ErrInvalidSubscription)
	}
	n := 0
	for _, set := range []bool{p.ExpireAt != nil, p.NeverExpire, p.ExtendDays != nil} {
		if set {
			n++
		}
	}
	if n > 1 {
		return fmt.Errorf("%w: expire_at, never_expire and extend_days are exclusive", ErrInvalidSubscription)
	}
	return nil
}

// Update changes quota, expiry or active flag. Lowering the quota keeps
// devices that are already allowed.
func (s *Service) Update(ctx context.Context, id string, patch *SubscriptionPatch) (*models.Subscription, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	var after *models.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := lock(tx, id)
		if err != nil {
			return err
		}
		cp := *before
		after = &cp
		if patch.DeviceLimit != nil {
			after.DeviceLimit = *patch.DeviceLimit
		}
		if patch.IsActive != nil {
			after.IsActive = *patch.IsActive
		}
		switch {
		case patch.NeverExpire:
			after.ExpireAt = nil
		case patch.ExpireAt != nil:
			at := *patch.ExpireAt
			after.ExpireAt = &at
		case patch.ExtendDays != nil:
			from := s.now()
			if after.ExpireAt != nil && after.ExpireAt.After(from) {
				from = *after.ExpireAt
			}
			at := from.AddDate(0, 0, *patch.ExtendDays)
			after.ExpireAt = &at
		}
		if err := tx.Model(after).Select("device_limit", "is_active", "expire_at").Updates(after).Error; err != nil {
			return fmt.Errorf("failed to update subscription: %w", err)
		}
		return s.writeLog(tx, before, after, types.SubscriptionChangeReasonUpdate, patch.OperatorID, nil)
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("subscription_updated", "subscription_id", id)
	return s.Get(ctx, id)
}

// Reset rotates the subscription key and wipes every device. Old URLs stop
// working immediately.
func (s *Service) Reset(ctx context.Context, id, operatorID, reason string) (*models.Subscription, error) {
	var after *models.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := lock(tx, id)
		if err != nil {
			return err
		}
		key, err := tool.GenerateKey(keyLength)
		if err != nil {
			return err
		}
		if err := tx.Model(before).UpdateColumn("subscription_key", key).Error; err != nil {
			return fmt.Errorf("failed to rotate subscription key: %w", err)
		}
		cleared, err := s.devices.Clear(ctx, tx, id)
		if err != nil {
			return err
		}
		after, err = lock(tx, id)
		if err != nil {
			return err
		}
		extra := datatypes.JSONMap{
			"cleared_devices": cleared,
			"devices_before":  before.CurrentDevices,
		}
		if reason != "" {
			extra["reason"] = reason
		}
		return s.writeLog(tx, before, after, types.SubscriptionChangeReasonReset, operatorID, extra)
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("subscription_reset", "subscription_id", id, "operator_id", operatorID)
	return after, nil
}

func (s *Service) writeLog(tx *gorm.DB, before, after *models.Subscription, reason types.SubscriptionChangeReason, operatorID string, extra datatypes.JSONMap) error {
	if extra == nil {
		extra = datatypes.JSONMap{}
	}
	log := &models.SubscriptionLog{
		ID:             tool.GenerateUUIDV7(),
		SubscriptionID: after.ID,
		UserID:         after.UserID,
		Reason:         reason,
		Before:         datatypes.NewJSONType(before),
		After:          datatypes.NewJSONType(after),
		Extra:          extra,
		OperatorID:     operatorID,
	}
	if err := tx.Create(log).Error; err != nil {
		return fmt.Errorf("failed to save subscription log: %w", err)
	}
	return nil
}

// Logs returns the change history of a subscription, newest first.
func (s *Service) Logs(ctx context.Context, id string) ([]*models.SubscriptionLog, error) {
	var rows []*models.SubscriptionLog
	if err := s.db.WithContext(ctx).Where("subscription_id = ?", id).Order("created_at desc").Order("id desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscription logs: %w", err)
	}
	return rows, nil
}

func lock(tx *gorm.DB, id string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}
