package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/subpanel/internal/app/service/access"
	"github.com/fatflowers/subpanel/pkg/logctx"
	"github.com/fatflowers/subpanel/pkg/types"
)

const contentType = "text/plain; charset=utf-8"

type AccessChecker interface {
	CheckAccess(ctx context.Context, req *access.CheckAccessRequest) *access.AccessResult
}

type ConfigSource interface {
	Config(ctx context.Context, t types.SubscriptionType) string
	InvalidConfig(ctx context.Context, t types.SubscriptionType) string
}

// @Summary      Subscription content
// @Description  Runs the device access check for the subscription key and returns the proxy configuration as plain text. Denied clients receive a placeholder configuration with the decision's status code.
// @Tags         Subscription
// @Produce      plain
// @Param        key        path   string  true   "Subscription key"
// @Param        device_id  query  string  false  "Client supplied device id"
// @Success      200  {string}  string
// @Failure      403  {string}  string
// @Failure      404  {string}  string
// @Router       /api/v1/subscriptions/clash/{key} [get]
// @Router       /api/v1/subscriptions/ssr/{key} [get]
// @Router       /api/v1/subscriptions/v2ray/{key} [get]
func ApiSubscriptionContent(checker AccessChecker, configs ConfigSource, t types.SubscriptionType, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		res := checker.CheckAccess(ctx, &access.CheckAccessRequest{
			SubscriptionKey:  c.Param("key"),
			UserAgent:        c.GetHeader("User-Agent"),
			ClientIP:         c.ClientIP(),
			SubscriptionType: t,
			DeviceID:         c.Query("device_id"),
		})
		if !res.Allowed {
			logctx.FromGin(c, log).Warnw("subscription_access_denied",
				"subscription_type", t,
				"access_type", res.AccessType,
				"message", res.Message,
			)
			c.Data(res.StatusCode, contentType, []byte(configs.InvalidConfig(ctx, t)))
			return
		}

		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Data(http.StatusOK, contentType, []byte(configs.Config(ctx, t)))
	}
}

// RegisterSubscriptionContentRoutes mounts the client facing endpoints. The
// v2ray path is an alias of ssr.
func RegisterSubscriptionContentRoutes(r gin.IRouter, checker AccessChecker, configs ConfigSource, log *zap.SugaredLogger) {
	r.GET("/ssr/:key", ApiSubscriptionContent(checker, configs, types.SubscriptionTypeSSR, log))
	r.GET("/v2ray/:key", ApiSubscriptionContent(checker, configs, types.SubscriptionTypeSSR, log))
	r.GET("/clash/:key", ApiSubscriptionContent(checker, configs, types.SubscriptionTypeClash, log))
}
