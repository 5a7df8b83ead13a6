package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/subpanel/docs"
	"github.com/fatflowers/subpanel/internal/app/api/handlers"
	mw "github.com/fatflowers/subpanel/internal/app/api/middleware"
	"github.com/fatflowers/subpanel/internal/app/service/access"
	"github.com/fatflowers/subpanel/internal/app/service/accesslog"
	"github.com/fatflowers/subpanel/internal/app/service/device"
	"github.com/fatflowers/subpanel/internal/app/service/proxyconfig"
	"github.com/fatflowers/subpanel/internal/app/service/softwarerule"
	"github.com/fatflowers/subpanel/internal/app/service/statistics"
	subsvc "github.com/fatflowers/subpanel/internal/app/service/subscription"
	cfgpkg "github.com/fatflowers/subpanel/pkg/config"
	metrics "github.com/fatflowers/subpanel/pkg/metrics"
)

func newEngine(cfg *cfgpkg.Config) (*gin.Engine, error) {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	// Only listed proxies may set the client IP through X-Forwarded-For.
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r, nil
}

type routeDeps struct {
	fx.In

	Log           *zap.SugaredLogger
	Cfg           *cfgpkg.Config
	DB            *gorm.DB
	Registerer    prometheus.Registerer
	Access        *access.Service
	Configs       *proxyconfig.Provider
	Devices       *device.Service
	Rules         *softwarerule.Service
	AccessLogs    *accesslog.Service
	Subscriptions *subsvc.Service
	Statistics    *statistics.Service
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	log, cfg := d.Log, d.Cfg
	// Prometheus metrics
	if cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger:     log,
			Registerer: d.Registerer,
		})
		p.SetListenAddress(cfg.MetricsAddr)
		p.Use(r)

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}
	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterHealthRoutes(pub, d.DB)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))

	// Client facing subscription content, authenticated by the key in the path
	handlers.RegisterSubscriptionContentRoutes(apiV1.Group("/subscriptions"), d.Access, d.Configs, log)

	secret := cfg.Auth.JWTSecret
	handlers.RegisterAdminRoutes(apiV1.Group("/admin", mw.AuthMiddleware(secret, true, log)), handlers.AdminServices{
		Devices:       d.Devices,
		Rules:         d.Rules,
		AccessLogs:    d.AccessLogs,
		Subscriptions: d.Subscriptions,
		Statistics:    d.Statistics,
	})
	handlers.RegisterUserRoutes(apiV1.Group("/user", mw.AuthMiddleware(secret, false, log)), d.Devices, d.Subscriptions)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
