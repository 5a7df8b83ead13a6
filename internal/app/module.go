package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/subpanel/internal/app/api/server"
	"github.com/fatflowers/subpanel/internal/app/service/access"
	"github.com/fatflowers/subpanel/internal/app/service/accesslog"
	"github.com/fatflowers/subpanel/internal/app/service/device"
	"github.com/fatflowers/subpanel/internal/app/service/devicecount"
	"github.com/fatflowers/subpanel/internal/app/service/proxyconfig"
	"github.com/fatflowers/subpanel/internal/app/service/softwarerule"
	"github.com/fatflowers/subpanel/internal/app/service/statistics"
	"github.com/fatflowers/subpanel/internal/app/service/subscription"
	"github.com/fatflowers/subpanel/internal/platform/db"
	"github.com/fatflowers/subpanel/internal/platform/redis"
	"github.com/fatflowers/subpanel/pkg/config"
	"github.com/fatflowers/subpanel/pkg/logger"
	"github.com/fatflowers/subpanel/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	redis.Module,
	metrics.Module,
	softwarerule.Module,
	accesslog.Module,
	devicecount.Module,
	access.Module,
	device.Module,
	subscription.Module,
	statistics.Module,
	proxyconfig.Module,
	server.Module,
)
