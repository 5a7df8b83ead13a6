// Package devicecount keeps subscription.current_devices equal to the number
// of allowed devices.
package devicecount

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/subpanel/internal/models"
	"github.com/fatflowers/subpanel/pkg/logctx"
)

type Synchronizer struct {
	log *zap.SugaredLogger
}

func New(log *zap.SugaredLogger) *Synchronizer { return &Synchronizer{log: log} }

// Sync recomputes the allowed device count of a subscription and stores it.
// It must run on the same transaction that mutated the device set.
func (s *Synchronizer) Sync(ctx context.Context, tx *gorm.DB, subscriptionID string) (int64, error) {
	var allowed int64
	err := tx.WithContext(ctx).Model(&models.Device{}).
		Where("subscription_id = ? AND is_allowed = ?", subscriptionID, true).
		Count(&allowed).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count allowed devices: %w", err)
	}
	err = tx.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", subscriptionID).
		UpdateColumn("current_devices", allowed).Error
	if err != nil {
		return 0, fmt.Errorf("failed to update current devices: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Debugw("device_count_synced", "subscription_id", subscriptionID, "current_devices", allowed)
	return allowed, nil
}

// Module exposes the synchronizer via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
