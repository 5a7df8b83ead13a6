package accesslog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/subpanel/internal/models"
	"github.com/fatflowers/subpanel/internal/platform/db/dbtest"
	"github.com/fatflowers/subpanel/pkg/types"
)

func TestAppend_WritesOnTransaction(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	s := New(db, zap.NewNop().Sugar())

	err := db.Transaction(func(tx *gorm.DB) error {
		s.Append(ctx, tx, &Entry{SubscriptionID: "sub", AccessType: "clash_allowed", ResponseStatus: 200, ResponseMessage: "ok"})
		return nil
	})
	require.NoError(t, err)

	var rows []models.AccessLog
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, "clash_allowed", rows[0].AccessType)
	require.False(t, rows[0].AccessTime.IsZero())
	require.Nil(t, rows[0].DeviceID)
}

func TestAppend_RolledBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	s := New(db, zap.NewNop().Sugar())

	err := db.Transaction(func(tx *gorm.DB) error {
		s.Append(ctx, tx, &Entry{SubscriptionID: "sub", AccessType: "clash_allowed"})
		return errors.New("abort")
	})
	require.Error(t, err)

	var n int64
	require.NoError(t, db.Model(&models.AccessLog{}).Count(&n).Error)
	require.Zero(t, n)
}

func TestAppend_FailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	s := New(db, zap.NewNop().Sugar())

	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_access_log", func(d *gorm.DB) {
		if d.Statement.Table == (models.AccessLog{}).TableName() {
			_ = d.AddError(errors.New("disk full"))
		}
	}))

	now := time.Now()
	err := db.Transaction(func(tx *gorm.DB) error {
		s.Append(ctx, tx, &Entry{SubscriptionID: "sub", AccessType: "clash_allowed"})
		return tx.Create(&models.Subscription{ID: "sub", UserID: "u", SubscriptionKey: "k", IsActive: true, CreatedAt: now}).Error
	})
	require.NoError(t, err)

	var subs int64
	require.NoError(t, db.Model(&models.Subscription{}).Count(&subs).Error)
	require.EqualValues(t, 1, subs)
}

func TestAppend_IgnoresEntriesWithoutSubscription(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	s := New(db, zap.NewNop().Sugar())

	s.Append(ctx, db, &Entry{AccessType: "not_found"})
	s.Append(ctx, db, nil)
	s.Record(ctx, &Entry{AccessType: "not_found"})

	var n int64
	require.NoError(t, db.Model(&models.AccessLog{}).Count(&n).Error)
	require.Zero(t, n)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	s := New(db, zap.NewNop().Sugar())

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i, at := range []string{"clash_allowed", "clash_blocked_device_limit", "ssr_allowed", "browser_access"} {
		s.Record(ctx, &Entry{SubscriptionID: lo.Ternary(i < 2, "a", "b"), AccessType: at, AccessTime: base.Add(time.Duration(i) * time.Minute)})
	}

	res, err := s.List(ctx, &ListRequest{})
	require.NoError(t, err)
	require.EqualValues(t, 4, res.Total)
	require.Equal(t, "browser_access", res.Items[0].AccessType)

	res, err = s.List(ctx, &ListRequest{
		Filters:   types.Filters{{Field: "subscription_id", Operator: types.CommonFilterOperatorEq, Values: []any{"a"}}},
		SortBy:    "access_time",
		SortOrder: "asc",
		Size:      1,
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Total)
	require.Len(t, res.Items, 1)
	require.Equal(t, "clash_allowed", res.Items[0].AccessType)

	res, err = s.List(ctx, &ListRequest{
		Filters: types.Filters{{Field: "access_type", Operator: types.CommonFilterOperatorLike, Values: []any{"allowed"}}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Total)

	_, err = s.List(ctx, &ListRequest{Filters: types.Filters{{Field: "user_agent; drop", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}}}})
	require.Error(t, err)
	_, err = s.List(ctx, &ListRequest{SortBy: "id; drop"})
	require.Error(t, err)
}
