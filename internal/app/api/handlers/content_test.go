package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/subpanel/internal/app/service/access"
	"github.com/fatflowers/subpanel/internal/app/service/accesslog"
	"github.com/fatflowers/subpanel/internal/app/service/devicecount"
	"github.com/fatflowers/subpanel/internal/app/service/proxyconfig"
	"github.com/fatflowers/subpanel/internal/app/service/softwarerule"
	"github.com/fatflowers/subpanel/internal/models"
	"github.com/fatflowers/subpanel/internal/platform/db/dbtest"
	"github.com/fatflowers/subpanel/pkg/config"
	"github.com/fatflowers/subpanel/pkg/types"
)

type stubChecker struct {
	result *access.AccessResult
	last   *access.CheckAccessRequest
}

func (s *stubChecker) CheckAccess(_ context.Context, req *access.CheckAccessRequest) *access.AccessResult {
	s.last = req
	return s.result
}

type stubConfigs struct{}

func (stubConfigs) Config(_ context.Context, t types.SubscriptionType) string {
	return "config:" + string(t)
}

func (stubConfigs) InvalidConfig(_ context.Context, t types.SubscriptionType) string {
	return "invalid:" + string(t)
}

func newContentEngine(checker AccessChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterSubscriptionContentRoutes(r.Group("/api/v1/subscriptions"), checker, stubConfigs{}, zap.NewNop().Sugar())
	return r
}

func TestSubscriptionContentAllowed(t *testing.T) {
	checker := &stubChecker{result: &access.AccessResult{Allowed: true, StatusCode: http.StatusOK}}
	r := newContentEngine(checker)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/clash/abc?device_id=dev-1", nil)
	req.Header.Set("User-Agent", "ClashForWindows/0.20.39")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "config:clash", w.Body.String())
	require.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))
	require.Equal(t, "no-cache", w.Header().Get("Pragma"))
	require.Equal(t, "0", w.Header().Get("Expires"))
	require.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	require.Equal(t, "abc", checker.last.SubscriptionKey)
	require.Equal(t, "dev-1", checker.last.DeviceID)
	require.Equal(t, "ClashForWindows/0.20.39", checker.last.UserAgent)
	require.Equal(t, types.SubscriptionTypeClash, checker.last.SubscriptionType)
	require.NotEmpty(t, checker.last.ClientIP)
}

func TestSubscriptionContentV2RayAlias(t *testing.T) {
	checker := &stubChecker{result: &access.AccessResult{Allowed: true, StatusCode: http.StatusOK}}
	r := newContentEngine(checker)

	for _, path := range []string{"/api/v1/subscriptions/ssr/abc", "/api/v1/subscriptions/v2ray/abc"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "config:ssr", w.Body.String())
		require.Equal(t, types.SubscriptionTypeSSR, checker.last.SubscriptionType)
	}
}

func TestSubscriptionContentDenied(t *testing.T) {
	cases := []struct {
		name   string
		status int
	}{
		{"device limit", http.StatusForbidden},
		{"not found", http.StatusNotFound},
		{"internal failure", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newContentEngine(&stubChecker{result: &access.AccessResult{StatusCode: tc.status, Message: tc.name}})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/clash/abc", nil))

			require.Equal(t, tc.status, w.Code)
			require.Equal(t, "invalid:clash", w.Body.String())
			require.Empty(t, w.Header().Get("Cache-Control"))
		})
	}
}

func TestSubscriptionContentEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := dbtest.New(t)
	log := zap.NewNop().Sugar()
	cfg := &config.Config{}
	rules := softwarerule.NewServiceWithCache(cfg, db, log, softwarerule.NewMemoryCache(time.Minute))
	_, err := rules.SeedDefaults(context.Background())
	require.NoError(t, err)
	checker, err := access.NewService(db, log, rules, accesslog.New(db, log), devicecount.New(log), prometheus.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Subscription{ID: "s1", UserID: "u1", SubscriptionKey: "key1", DeviceLimit: 1, IsActive: true}).Error)

	r := gin.New()
	RegisterSubscriptionContentRoutes(r.Group("/sub"), checker, proxyconfig.New(cfg, log), log)
	get := func(ua string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/sub/clash/key1", nil)
		req.Header.Set("User-Agent", ua)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := get("ClashForWindows/0.20.39")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Clash")

	w = get("Shadowrocket/1983 CFNetwork/1410.0.3 Darwin/22.6.0 iPhone14,2")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), "MATCH,DIRECT")

	// the admitted device keeps working
	require.Equal(t, http.StatusOK, get("ClashForWindows/0.20.39").Code)

	var sub models.Subscription
	require.NoError(t, db.First(&sub, "id = ?", "s1").Error)
	require.Equal(t, 1, sub.CurrentDevices)

	var logs int64
	require.NoError(t, db.Model(&models.AccessLog{}).Count(&logs).Error)
	require.EqualValues(t, 3, logs)
}
