package server

import (
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
	"github.com/fatflowers/subpanel/internal/app/service/device"
	"github.com/fatflowers/subpanel/internal/app/service/devicecount"
	"github.com/fatflowers/subpanel/internal/app/service/proxyconfig"
	"github.com/fatflowers/subpanel/internal/app/service/softwarerule"
	"github.com/fatflowers/subpanel/internal/app/service/statistics"
	subsvc "github.com/fatflowers/subpanel/internal/app/service/subscription"
	"github.com/fatflowers/subpanel/internal/platform/db/dbtest"
	cfgpkg "github.com/fatflowers/subpanel/pkg/config"
)

func newTestDeps(t *testing.T, cfg *cfgpkg.Config) routeDeps {
	t.Helper()
	db := dbtest.New(t)
	log := zap.NewNop().Sugar()
	reg := prometheus.NewRegistry()
	counter := devicecount.New(log)
	rules := softwarerule.NewServiceWithCache(cfg, db, log, softwarerule.NewMemoryCache(time.Minute))
	logs := accesslog.New(db, log)
	checker, err := access.NewService(db, log, rules, logs, counter, reg)
	require.NoError(t, err)
	devices, err := device.NewService(db, log, counter, reg)
	require.NoError(t, err)
	return routeDeps{
		Log:           log,
		Cfg:           cfg,
		DB:            db,
		Registerer:    reg,
		Access:        checker,
		Configs:       proxyconfig.New(cfg, log),
		Devices:       devices,
		Rules:         rules,
		AccessLogs:    logs,
		Subscriptions: subsvc.NewService(cfg, db, log, devices),
		Statistics:    statistics.New(db),
	}
}

func TestRegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &cfgpkg.Config{Auth: cfgpkg.AuthConfig{JWTSecret: "s"}}
	r, err := newEngine(cfg)
	require.NoError(t, err)
	registerRoutes(r, newTestDeps(t, cfg))

	routes := map[string]bool{}
	for _, rt := range r.Routes() {
		routes[rt.Method+" "+rt.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /readyz",
		"GET /api/v1/subscriptions/ssr/:key",
		"GET /api/v1/subscriptions/clash/:key",
		"GET /api/v1/subscriptions/v2ray/:key",
		"POST /api/v1/admin/devices/list",
		"POST /api/v1/admin/devices/:id/allow",
		"GET /api/v1/admin/software-rules",
		"POST /api/v1/admin/access-logs/list",
		"POST /api/v1/admin/subscriptions/:id/reset",
		"POST /api/v1/admin/get_statistic",
		"GET /api/v1/user/devices",
		"POST /api/v1/user/devices/clear",
	} {
		require.True(t, routes[want], want)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/software-rules", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/clash/missing", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestNewEngineRejectsBadProxies(t *testing.T) {
	_, err := newEngine(&cfgpkg.Config{Server: cfgpkg.ServerConfig{TrustedProxies: []string{"not-an-ip"}}})
	require.Error(t, err)
}
