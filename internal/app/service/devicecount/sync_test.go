package devicecount

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/subpanel/internal/models"
	"github.com/fatflowers/subpanel/internal/platform/db/dbtest"
)

func TestSync(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	now := time.Now()

	sub := &models.Subscription{ID: "sub-1", UserID: "u1", SubscriptionKey: "k1", DeviceLimit: 5, CurrentDevices: 9, IsActive: true}
	other := &models.Subscription{ID: "sub-2", UserID: "u1", SubscriptionKey: "k2", DeviceLimit: 5, IsActive: true}
	require.NoError(t, db.Create(sub).Error)
	require.NoError(t, db.Create(other).Error)

	for i, allowed := range []bool{true, true, false} {
		require.NoError(t, db.Create(&models.Device{
			ID: fmt.Sprintf("d%d", i), SubscriptionID: sub.ID, UserID: "u1", DeviceHash: fmt.Sprintf("h%d", i),
			IsAllowed: allowed, FirstSeen: now, LastSeen: now, AccessCount: 1,
		}).Error)
	}
	require.NoError(t, db.Create(&models.Device{
		ID: "x", SubscriptionID: other.ID, UserID: "u1", DeviceHash: "h0", IsAllowed: true, FirstSeen: now, LastSeen: now,
	}).Error)

	s := New(zap.NewNop().Sugar())
	n, err := s.Sync(ctx, db, sub.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	var got models.Subscription
	require.NoError(t, db.First(&got, "id = ?", sub.ID).Error)
	require.Equal(t, 2, got.CurrentDevices)

	require.NoError(t, db.Where("subscription_id = ?", sub.ID).Delete(&models.Device{}).Error)
	n, err = s.Sync(ctx, db, sub.ID)
	require.NoError(t, err)
	require.Zero(t, n)
	require.NoError(t, db.First(&got, "id = ?", sub.ID).Error)
	require.Zero(t, got.CurrentDevices)
}
