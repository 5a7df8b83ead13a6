package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/subpanel/internal/app/service/device"
	"github.com/fatflowers/subpanel/internal/app/service/devicecount"
	"github.com/fatflowers/subpanel/internal/models"
	"github.com/fatflowers/subpanel/internal/platform/db/dbtest"
	"github.com/fatflowers/subpanel/pkg/config"
	"github.com/fatflowers/subpanel/pkg/types"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := dbtest.New(t)
	log := zap.NewNop().Sugar()
	devices, err := device.NewService(db, log, devicecount.New(log), prometheus.NewRegistry())
	require.NoError(t, err)
	cfg := &config.Config{Subscription: config.SubscriptionConfig{DefaultDeviceLimit: 3}}
	return NewService(cfg, db, log, devices), db
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	sub, err := svc.Create(ctx, &CreateSubscriptionRequest{UserID: "u1", OperatorID: "admin"})
	require.NoError(t, err)
	require.Len(t, sub.SubscriptionKey, keyLength)
	require.Equal(t, 3, sub.DeviceLimit)
	require.True(t, sub.IsActive)
	require.Nil(t, sub.ExpireAt)

	got, err := svc.FindByKey(ctx, sub.SubscriptionKey)
	require.NoError(t, err)
	require.Equal(t, sub.ID, got.ID)

	zero, err := svc.Create(ctx, &CreateSubscriptionRequest{UserID: "u1", DeviceLimit: lo.ToPtr(0), IsActive: lo.ToPtr(false)})
	require.NoError(t, err)
	require.Zero(t, zero.DeviceLimit)
	require.False(t, zero.IsActive)
	require.NotEqual(t, sub.SubscriptionKey, zero.SubscriptionKey)

	stored, err := svc.Get(ctx, zero.ID)
	require.NoError(t, err)
	require.Zero(t, stored.DeviceLimit)
	require.False(t, stored.IsActive)

	subs, err := svc.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, subs, 2)

	logs, err := svc.Logs(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, types.SubscriptionChangeReasonCreate, logs[0].Reason)
	require.Nil(t, logs[0].Before.Data())
	require.Equal(t, "admin", logs[0].OperatorID)

	_, err = svc.Create(ctx, &CreateSubscriptionRequest{})
	require.ErrorIs(t, err, ErrInvalidSubscription)
	_, err = svc.Create(ctx, &CreateSubscriptionRequest{UserID: "u1", DeviceLimit: lo.ToPtr(-1)})
	require.ErrorIs(t, err, ErrInvalidSubscription)
	_, err = svc.FindByKey(ctx, "missing")
	require.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	sub, err := svc.Create(ctx, &CreateSubscriptionRequest{UserID: "u1"})
	require.NoError(t, err)

	got, err := svc.Update(ctx, sub.ID, &SubscriptionPatch{DeviceLimit: lo.ToPtr(0), IsActive: lo.ToPtr(false)})
	require.NoError(t, err)
	require.Zero(t, got.DeviceLimit)
	require.False(t, got.IsActive)

	got, err = svc.Update(ctx, sub.ID, &SubscriptionPatch{ExtendDays: lo.ToPtr(30)})
	require.NoError(t, err)
	require.True(t, now.AddDate(0, 0, 30).Equal(*got.ExpireAt))

	got, err = svc.Update(ctx, sub.ID, &SubscriptionPatch{ExtendDays: lo.ToPtr(10)})
	require.NoError(t, err)
	require.True(t, now.AddDate(0, 0, 40).Equal(*got.ExpireAt))

	got, err = svc.Update(ctx, sub.ID, &SubscriptionPatch{NeverExpire: true})
	require.NoError(t, err)
	require.Nil(t, got.ExpireAt)

	_, err = svc.Update(ctx, sub.ID, &SubscriptionPatch{NeverExpire: true, ExtendDays: lo.ToPtr(1)})
	require.ErrorIs(t, err, ErrInvalidSubscription)
	_, err = svc.Update(ctx, "missing", &SubscriptionPatch{})
	require.ErrorIs(t, err, ErrSubscriptionNotFound)

	logs, err := svc.Logs(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, logs, 5)
	updates := lo.Filter(logs, func(l *models.SubscriptionLog, _ int) bool { return l.Reason == types.SubscriptionChangeReasonUpdate })
	require.Len(t, updates, 4)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	sub, err := svc.Create(ctx, &CreateSubscriptionRequest{UserID: "u1"})
	require.NoError(t, err)
	now := time.Now()
	for i, allowed := range []bool{true, true, false} {
		require.NoError(t, db.Create(&models.Device{
			ID: lo.RandomString(8, lo.LettersCharset), SubscriptionID: sub.ID, UserID: "u1",
			DeviceHash: string(rune('a' + i)), IsAllowed: allowed, FirstSeen: now, LastSeen: now,
		}).Error)
	}
	require.NoError(t, db.Model(&models.Subscription{}).Where("id = ?", sub.ID).Update("current_devices", 2).Error)

	after, err := svc.Reset(ctx, sub.ID, "admin", "leaked")
	require.NoError(t, err)
	require.NotEqual(t, sub.SubscriptionKey, after.SubscriptionKey)
	require.Zero(t, after.CurrentDevices)

	var n int64
	require.NoError(t, db.Model(&models.Device{}).Where("subscription_id = ?", sub.ID).Count(&n).Error)
	require.Zero(t, n)

	_, err = svc.FindByKey(ctx, sub.SubscriptionKey)
	require.ErrorIs(t, err, ErrSubscriptionNotFound)

	logs, err := svc.Logs(ctx, sub.ID)
	require.NoError(t, err)
	reset, ok := lo.Find(logs, func(l *models.SubscriptionLog) bool { return l.Reason == types.SubscriptionChangeReasonReset })
	require.True(t, ok)
	require.Equal(t, sub.SubscriptionKey, reset.Before.Data().SubscriptionKey)
	require.Equal(t, after.SubscriptionKey, reset.After.Data().SubscriptionKey)
	require.EqualValues(t, 3, reset.Extra["cleared_devices"])
	require.EqualValues(t, 2, reset.Extra["devices_before"])
	require.Equal(t, "leaked", reset.Extra["reason"])

	_, err = svc.Reset(ctx, "missing", "admin", "")
	require.ErrorIs(t, err, ErrSubscriptionNotFound)
}
