package softwarerule

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/subpanel/internal/models"
	"github.com/fatflowers/subpanel/internal/platform/db/dbtest"
	"github.com/fatflowers/subpanel/pkg/config"
	"github.com/fatflowers/subpanel/pkg/uaparser"
)

func newTestService(t *testing.T, ttl time.Duration) *Service {
	t.Helper()
	cfg := &config.Config{SoftwareRules: config.SoftwareRulesConfig{CacheTTL: ttl}}
	return NewService(cfg, dbtest.New(t), zap.NewNop().Sugar(), nil)
}

func TestSeedDefaults(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, time.Minute)

	n, err := svc.SeedDefaults(ctx)
	require.NoError(t, err)
	require.Equal(t, len(defaultRules), n)

	again, err := svc.SeedDefaults(ctx)
	require.NoError(t, err)
	require.Zero(t, again)

	rules := svc.Rules(ctx)
	require.Len(t, rules, len(defaultRules))
	for _, r := range rules {
		require.Equal(t, categoryProxy, r.Category)
	}
	_, ok := lo.Find(rules, func(r uaparser.Rule) bool { return r.Pattern == "clashforwindows" })
	require.True(t, ok)
}

func TestRules_OnlyActiveSortedByName(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 0)

	_, err := svc.Create(ctx, &CreateRuleRequest{SoftwareName: "Surge", UserAgentPattern: "surge"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &CreateRuleRequest{SoftwareName: "Loon", UserAgentPattern: "loon"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &CreateRuleRequest{SoftwareName: "Old", UserAgentPattern: "old", IsActive: lo.ToPtr(false)})
	require.NoError(t, err)

	rules := svc.Rules(ctx)
	require.Equal(t, []string{"Loon", "Surge"}, lo.Map(rules, func(r uaparser.Rule, _ int) string { return r.Software }))
}

func TestRules_CachedUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, time.Hour)

	_, err := svc.Create(ctx, &CreateRuleRequest{SoftwareName: "Surge", UserAgentPattern: "surge"})
	require.NoError(t, err)
	require.Len(t, svc.Rules(ctx), 1)

	// Written behind the service's back: not visible until invalidated.
	require.NoError(t, svc.db.Create(&models.SoftwareRule{
		ID: "manual", SoftwareName: "Loon", SoftwareCategory: categoryProxy, UserAgentPattern: "loon", IsActive: true,
	}).Error)
	require.Len(t, svc.Rules(ctx), 1)

	svc.Invalidate(ctx)
	require.Len(t, svc.Rules(ctx), 2)
}

func TestMutationsInvalidateCache(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, time.Hour)

	rule, err := svc.Create(ctx, &CreateRuleRequest{SoftwareName: "Surge", UserAgentPattern: "surge"})
	require.NoError(t, err)
	require.Equal(t, "surge", svc.Rules(ctx)[0].Pattern)

	updated, err := svc.Update(ctx, rule.ID, &RulePatch{UserAgentPattern: lo.ToPtr("surge-ios")})
	require.NoError(t, err)
	require.Equal(t, "surge-ios", updated.UserAgentPattern)
	require.Equal(t, "surge-ios", svc.Rules(ctx)[0].Pattern)

	_, err = svc.Update(ctx, rule.ID, &RulePatch{IsActive: lo.ToPtr(false)})
	require.NoError(t, err)
	require.Empty(t, svc.Rules(ctx))

	require.NoError(t, svc.Delete(ctx, rule.ID))
	require.ErrorIs(t, svc.Delete(ctx, rule.ID), ErrRuleNotFound)
	_, err = svc.Get(ctx, rule.ID)
	require.ErrorIs(t, err, ErrRuleNotFound)
}

func TestCreateAndUpdate_Validation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 0)

	_, err := svc.Create(ctx, &CreateRuleRequest{SoftwareName: "x"})
	require.ErrorIs(t, err, ErrInvalidRule)
	_, err = svc.Create(ctx, &CreateRuleRequest{UserAgentPattern: "x"})
	require.ErrorIs(t, err, ErrInvalidRule)

	rule, err := svc.Create(ctx, &CreateRuleRequest{SoftwareName: "Stash", UserAgentPattern: "stash"})
	require.NoError(t, err)
	require.Equal(t, categoryProxy, rule.SoftwareCategory)
	require.True(t, rule.IsActive)

	_, err = svc.Update(ctx, rule.ID, &RulePatch{SoftwareName: lo.ToPtr("  ")})
	require.ErrorIs(t, err, ErrInvalidRule)
	_, err = svc.Update(ctx, "missing", &RulePatch{IsActive: lo.ToPtr(true)})
	require.ErrorIs(t, err, ErrRuleNotFound)
}

func TestList_Keyword(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 0)
	_, err := svc.SeedDefaults(ctx)
	require.NoError(t, err)

	rows, err := svc.List(ctx, &ListRulesRequest{Keyword: "V2RAY"})
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	for _, r := range rows {
		require.Contains(t, r.UserAgentPattern+r.SoftwareName, "2ray")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(time.Minute).(*memoryCache)
	c.now = func() time.Time { return now }

	_, ok := c.Get(ctx)
	require.False(t, ok)

	c.Set(ctx, []uaparser.Rule{{Pattern: "clash", Software: "Clash"}})
	rules, ok := c.Get(ctx)
	require.True(t, ok)
	require.Len(t, rules, 1)

	now = now.Add(time.Minute)
	_, ok = c.Get(ctx)
	require.False(t, ok)

	c.Set(ctx, nil)
	c.Invalidate(ctx)
	_, ok = c.Get(ctx)
	require.False(t, ok)
}

func TestMemoryCache_DisabledWithZeroTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	c.Set(ctx, []uaparser.Rule{{Pattern: "clash"}})
	_, ok := c.Get(ctx)
	require.False(t, ok)
}
