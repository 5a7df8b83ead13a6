package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/subpanel/internal/app/api/middleware"
	"github.com/fatflowers/subpanel/internal/app/service/device"
	subsvc "github.com/fatflowers/subpanel/internal/app/service/subscription"
	"github.com/fatflowers/subpanel/pkg/response"
)

func currentUserID(c *gin.Context) string {
	if claims := middleware.ClaimsFrom(c); claims != nil {
		return claims.UserID
	}
	return ""
}

// @Summary      My Subscriptions
// @Tags         User
// @Produce      json
// @Success      200  {object}  handlers.RespSubscriptions
// @Router       /api/v1/user/subscriptions [get]
func ApiMySubscriptions(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := sub.ListByUser(c.Request.Context(), currentUserID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      My Devices
// @Description  Lists the devices registered on the caller's subscriptions.
// @Tags         User
// @Produce      json
// @Param        from        query  int     false  "Offset"
// @Param        size        query  int     false  "Page size"
// @Param        sort_by     query  string  false  "Sort field"
// @Param        sort_order  query  string  false  "asc or desc"
// @Success      200  {object}  handlers.RespListDevices
// @Router       /api/v1/user/devices [get]
func ApiMyDevices(svc *device.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req device.ListDevicesRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		req.UserID = currentUserID(c)
		req.SubscriptionID = ""
		res, err := svc.ListDevices(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Delete My Device
// @Tags         User
// @Produce      json
// @Param        id   path  string  true  "Device ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/user/devices/{id} [delete]
func ApiDeleteMyDevice(svc *device.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := svc.DeleteDevice(c.Request.Context(), c.Param("id"), currentUserID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		if !ok {
			writeError(c, device.ErrDeviceNotFound)
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Clear My Devices
// @Tags         User
// @Produce      json
// @Success      200  {object}  handlers.RespClearDevices
// @Router       /api/v1/user/devices/clear [post]
func ApiClearMyDevices(svc *device.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.ClearUserDevices(c.Request.Context(), currentUserID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ClearDevicesResponse{Cleared: n}))
	}
}

func RegisterUserRoutes(r gin.IRouter, devices *device.Service, sub *subsvc.Service) {
	r.GET("/subscriptions", ApiMySubscriptions(sub))
	r.GET("/devices", ApiMyDevices(devices))
	r.DELETE("/devices/:id", ApiDeleteMyDevice(devices))
	r.POST("/devices/clear", ApiClearMyDevices(devices))
}
