package statistics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fatflowers/subpanel/internal/models"
	"github.com/fatflowers/subpanel/internal/platform/db/dbtest"
	"github.com/fatflowers/subpanel/pkg/types"
)

var day = time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

func seedData(t *testing.T, db *gorm.DB) {
	t.Helper()
	expired := day.Add(-time.Hour)
	require.NoError(t, db.Create(&models.Subscription{ID: "s1", UserID: "u1", SubscriptionKey: "k1", DeviceLimit: 3, IsActive: true}).Error)
	require.NoError(t, db.Create(&models.Subscription{ID: "s2", UserID: "u2", SubscriptionKey: "k2", DeviceLimit: 3, IsActive: false}).Error)
	require.NoError(t, db.Create(&models.Subscription{ID: "s3", UserID: "u2", SubscriptionKey: "k3", DeviceLimit: 3, IsActive: true, ExpireAt: &expired}).Error)

	devices := []models.Device{
		{ID: "d1", SubscriptionID: "s1", UserID: "u1", DeviceHash: "h1", SoftwareName: "clash", OSName: "Windows", DeviceType: "desktop", IsAllowed: true, FirstSeen: day},
		{ID: "d2", SubscriptionID: "s1", UserID: "u1", DeviceHash: "h2", SoftwareName: "clash", OSName: "Android", DeviceType: "mobile", IsAllowed: false, FirstSeen: day},
		{ID: "d3", SubscriptionID: "s2", UserID: "u2", DeviceHash: "h3", SoftwareName: "Shadowrocket", OSName: "iOS", DeviceType: "mobile", IsAllowed: true, FirstSeen: day.AddDate(0, 0, 1)},
	}
	for i := range devices {
		devices[i].LastSeen = devices[i].FirstSeen
		require.NoError(t, db.Create(&devices[i]).Error)
	}

	logs := []models.AccessLog{
		{SubscriptionID: "s1", AccessType: "clash_allowed", ResponseStatus: 200, AccessTime: day},
		{SubscriptionID: "s1", AccessType: "clash_allowed", ResponseStatus: 200, AccessTime: day.Add(time.Hour)},
		{SubscriptionID: "s1", AccessType: "browser_access", ResponseStatus: 200, AccessTime: day.Add(2 * time.Hour)},
		{SubscriptionID: "s2", AccessType: "ssr_blocked_inactive", ResponseStatus: 403, AccessTime: day.AddDate(0, 0, 1)},
	}
	for i := range logs {
		logs[i].ID = fmt.Sprintf("l%d", i)
		require.NoError(t, db.Create(&logs[i]).Error)
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := dbtest.New(t)
	seedData(t, db)
	s := New(db)
	s.now = func() time.Time { return day }
	return s
}

func items(ids ...StatisticType) []*StatisticDataItem {
	out := make([]*StatisticDataItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, &StatisticDataItem{ID: id})
	}
	return out
}

func TestGetStatistic(t *testing.T) {
	s := newTestService(t)

	resp, err := s.GetStatistic(context.Background(), &StatisticRequest{DataItems: items(
		StatisticTypeDailyAccessCount,
		StatisticTypeDailyDeniedCount,
		StatisticTypeDailyNewDeviceCount,
		StatisticTypeSoftwareDistribution,
		StatisticTypeTotalDeviceCount,
		StatisticTypeTotalSubscriptionCount,
	)})
	require.NoError(t, err)

	require.Equal(t, []StatisticResponseDataItem{
		{Date: "2026-10-02", Label: "ssr_blocked_inactive", Value: 1},
		{Date: "2026-10-01", Label: "browser_access", Value: 1},
		{Date: "2026-10-01", Label: "clash_allowed", Value: 2},
	}, resp.DataItems[StatisticTypeDailyAccessCount])

	require.Equal(t, []StatisticResponseDataItem{
		{Date: "2026-10-02", Value: 1},
	}, resp.DataItems[StatisticTypeDailyDeniedCount])

	require.Equal(t, []StatisticResponseDataItem{
		{Date: "2026-10-02", Value: 1},
		{Date: "2026-10-01", Value: 2},
	}, resp.DataItems[StatisticTypeDailyNewDeviceCount])

	require.Equal(t, []StatisticResponseDataItem{
		{Label: "clash", Value: 2, Value2: 1},
		{Label: "Shadowrocket", Value: 1, Value2: 1},
	}, resp.DataItems[StatisticTypeSoftwareDistribution])

	require.Equal(t, []StatisticResponseDataItem{
		{Value: 3, Value2: 2, Value3: 1},
	}, resp.DataItems[StatisticTypeTotalDeviceCount])

	require.Equal(t, []StatisticResponseDataItem{
		{Value: 3, Value2: 1},
	}, resp.DataItems[StatisticTypeTotalSubscriptionCount])
}

func TestGetStatisticFilters(t *testing.T) {
	s := newTestService(t)

	resp, err := s.GetStatistic(context.Background(), &StatisticRequest{
		Filters: types.Filters{
			{Field: "subscription_id", Operator: types.CommonFilterOperatorEq, Values: []any{"s1"}},
		},
		DataItems: items(StatisticTypeOSDistribution, StatisticTypeTotalDeviceCount, StatisticTypeTotalSubscriptionCount),
	})
	require.NoError(t, err)

	require.Equal(t, []StatisticResponseDataItem{
		{Label: "Android", Value: 1},
		{Label: "Windows", Value: 1, Value2: 1},
	}, resp.DataItems[StatisticTypeOSDistribution])
	require.Equal(t, []StatisticResponseDataItem{
		{Value: 2, Value2: 1, Value3: 1},
	}, resp.DataItems[StatisticTypeTotalDeviceCount])

	// subscription_id does not apply to the subscription table
	got, ok := resp.DataItems[StatisticTypeTotalSubscriptionCount]
	require.True(t, ok)
	require.Nil(t, got)
}

func TestGetStatisticValidation(t *testing.T) {
	s := newTestService(t)

	_, err := s.GetStatistic(context.Background(), &StatisticRequest{})
	require.Error(t, err)

	_, err = s.GetStatistic(context.Background(), &StatisticRequest{
		Filters:   types.Filters{{Field: "password", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}}},
		DataItems: items(StatisticTypeTotalDeviceCount),
	})
	require.ErrorContains(t, err, "filter field not allowed")

	_, err = s.GetStatistic(context.Background(), &StatisticRequest{DataItems: items("unknown")})
	require.ErrorContains(t, err, "invalid data item id")
}

func TestDateExpr(t *testing.T) {
	s := New(dbtest.New(t))
	require.Equal(t, "substr(first_seen, 1, 10)", s.dateExpr("first_seen"))
}
