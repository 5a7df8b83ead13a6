package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/subpanel/internal/app/api/middleware"
	"github.com/fatflowers/subpanel/internal/app/service/accesslog"
	"github.com/fatflowers/subpanel/internal/app/service/device"
	"github.com/fatflowers/subpanel/internal/app/service/softwarerule"
	"github.com/fatflowers/subpanel/internal/app/service/statistics"
	subsvc "github.com/fatflowers/subpanel/internal/app/service/subscription"
	"github.com/fatflowers/subpanel/pkg/response"
)

type ResetSubscriptionRequest struct {
	OperatorID string `json:"operator_id"`
	Reason     string `json:"reason"`
}

// operatorID falls back to the authenticated admin.
func operatorID(c *gin.Context, given string) string {
	if given != "" {
		return given
	}
	if claims := middleware.ClaimsFrom(c); claims != nil {
		return claims.UserID
	}
	return ""
}

// @Summary      Create Subscription (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body subscription.CreateSubscriptionRequest true "Subscription"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/admin/subscriptions [post]
func ApiCreateSubscription(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subsvc.CreateSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		req.OperatorID = operatorID(c, req.OperatorID)
		res, err := sub.Create(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get Subscription (Admin)
// @Tags         Admin
// @Produce      json
// @Param        id   path  string  true  "Subscription ID"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/admin/subscriptions/{id} [get]
func ApiGetSubscription(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := sub.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Update Subscription (Admin)
// @Description  Changes the device limit, expiry or active flag. expire_at, never_expire and extend_days are mutually exclusive.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id       path  string                          true  "Subscription ID"
// @Param        request  body  subscription.SubscriptionPatch  true  "Fields to change"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/admin/subscriptions/{id} [patch]
func ApiUpdateSubscription(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch subsvc.SubscriptionPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			badRequest(c, err.Error())
			return
		}
		patch.OperatorID = operatorID(c, patch.OperatorID)
		res, err := sub.Update(c.Request.Context(), c.Param("id"), &patch)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Reset Subscription (Admin)
// @Description  Rotates the subscription key and removes every device.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id       path  string                             true   "Subscription ID"
// @Param        request  body  handlers.ResetSubscriptionRequest  false  "Operator and reason"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/admin/subscriptions/{id}/reset [post]
func ApiResetSubscription(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResetSubscriptionRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
		}
		res, err := sub.Reset(c.Request.Context(), c.Param("id"), operatorID(c, req.OperatorID), req.Reason)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Subscription Change Logs (Admin)
// @Tags         Admin
// @Produce      json
// @Param        id   path  string  true  "Subscription ID"
// @Success      200  {object}  handlers.RespSubscriptionLogs
// @Router       /api/v1/admin/subscriptions/{id}/logs [get]
func ApiSubscriptionLogs(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := sub.Logs(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      User Subscriptions (Admin)
// @Tags         Admin
// @Produce      json
// @Param        user_id  path  string  true  "User ID"
// @Success      200  {object}  handlers.RespSubscriptions
// @Router       /api/v1/admin/users/{user_id}/subscriptions [get]
func ApiUserSubscriptions(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := sub.ListByUser(c.Request.Context(), c.Param("user_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminSubscriptionRoutes(r gin.IRouter, sub *subsvc.Service) {
	r.POST("/subscriptions", ApiCreateSubscription(sub))
	r.GET("/subscriptions/:id", ApiGetSubscription(sub))
	r.PATCH("/subscriptions/:id", ApiUpdateSubscription(sub))
	r.POST("/subscriptions/:id/reset", ApiResetSubscription(sub))
	r.GET("/subscriptions/:id/logs", ApiSubscriptionLogs(sub))
	r.GET("/users/:user_id/subscriptions", ApiUserSubscriptions(sub))
}

// AdminServices groups what the admin API needs.
type AdminServices struct {
	Devices       *device.Service
	Rules         *softwarerule.Service
	AccessLogs    *accesslog.Service
	Subscriptions *subsvc.Service
	Statistics    *statistics.Service
}

func RegisterAdminRoutes(r gin.IRouter, s AdminServices) {
	RegisterAdminDeviceRoutes(r, s.Devices)
	RegisterAdminSoftwareRuleRoutes(r, s.Rules)
	RegisterAdminAccessLogRoutes(r, s.AccessLogs)
	RegisterAdminSubscriptionRoutes(r, s.Subscriptions)
	RegisterAdminStatisticRoutes(r, s.Statistics)
}
