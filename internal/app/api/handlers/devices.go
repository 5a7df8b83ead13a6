package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/subpanel/internal/app/service/device"
	"github.com/fatflowers/subpanel/internal/models"
	"github.com/fatflowers/subpanel/pkg/response"
)

type SubscriptionDevicesResponse struct {
	Items []*models.Device    `json:"items"`
	Total int64               `json:"total"`
	Stats *device.DeviceStats `json:"stats"`
}

type ClearDevicesResponse struct {
	Cleared int64 `json:"cleared"`
}

// @Summary      List Devices (Admin)
// @Description  Retrieves a paginated and filterable list of devices.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body device.ListDevicesRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespListDevices
// @Router       /api/v1/admin/devices/list [post]
func ApiListDevices(svc *device.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req device.ListDevicesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.ListDevices(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get Device (Admin)
// @Tags         Admin
// @Produce      json
// @Param        id   path  string  true  "Device ID"
// @Success      200  {object}  handlers.RespDevice
// @Router       /api/v1/admin/devices/{id} [get]
func ApiGetDevice(svc *device.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := svc.GetDevice(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(d))
	}
}

// @Summary      Patch Device (Admin)
// @Description  Only is_allowed may be changed. Unknown fields are rejected.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id       path  string             true  "Device ID"
// @Param        request  body  device.DevicePatch  true  "Patch"
// @Success      200  {object}  handlers.RespDevice
// @Router       /api/v1/admin/devices/{id} [patch]
func ApiPatchDevice(svc *device.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		patch, err := device.DecodeDevicePatch(body)
		if err != nil {
			writeError(c, err)
			return
		}
		d, err := svc.PatchDevice(c.Request.Context(), c.Param("id"), patch)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(d))
	}
}

// @Summary      Allow Device (Admin)
// @Description  Admits a blocked device when the subscription is below its device limit.
// @Tags         Admin
// @Produce      json
// @Param        id   path  string  true  "Device ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/devices/{id}/allow [post]
func ApiAllowDevice(svc *device.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.AllowDevice(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Block Device (Admin)
// @Tags         Admin
// @Produce      json
// @Param        id   path  string  true  "Device ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/devices/{id}/block [post]
func ApiBlockDevice(svc *device.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := svc.SetDeviceAllowed(c.Request.Context(), c.Param("id"), false)
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

// @Summary      Delete Device (Admin)
// @Tags         Admin
// @Produce      json
// @Param        id   path  string  true  "Device ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/devices/{id} [delete]
func ApiDeleteDevice(svc *device.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := svc.DeleteDevice(c.Request.Context(), c.Param("id"), "")
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

// @Summary      Subscription Devices (Admin)
// @Description  Lists the devices of a subscription together with allowed and blocked totals.
// @Tags         Admin
// @Produce      json
// @Param        id    path   string  true   "Subscription ID"
// @Param        from  query  int     false  "Offset"
// @Param        size  query  int     false  "Page size"
// @Success      200  {object}  handlers.RespSubscriptionDevices
// @Router       /api/v1/admin/subscriptions/{id}/devices [get]
func ApiSubscriptionDevices(svc *device.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req device.ListDevicesRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		req.SubscriptionID = c.Param("id")
		ctx := c.Request.Context()
		stats, err := svc.Stats(ctx, req.SubscriptionID)
		if err != nil {
			writeError(c, err)
			return
		}
		res, err := svc.ListDevices(ctx, &req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&SubscriptionDevicesResponse{Items: res.Items, Total: res.Total, Stats: stats}))
	}
}

// @Summary      Clear Subscription Devices (Admin)
// @Tags         Admin
// @Produce      json
// @Param        id   path  string  true  "Subscription ID"
// @Success      200  {object}  handlers.RespClearDevices
// @Router       /api/v1/admin/subscriptions/{id}/devices/clear [post]
func ApiClearSubscriptionDevices(svc *device.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.ClearDevices(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ClearDevicesResponse{Cleared: n}))
	}
}

// @Summary      Clear User Devices (Admin)
// @Tags         Admin
// @Produce      json
// @Param        user_id  path  string  true  "User ID"
// @Success      200  {object}  handlers.RespClearDevices
// @Router       /api/v1/admin/users/{user_id}/devices/clear [post]
func ApiClearUserDevices(svc *device.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.ClearUserDevices(c.Request.Context(), c.Param("user_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ClearDevicesResponse{Cleared: n}))
	}
}

func RegisterAdminDeviceRoutes(r gin.IRouter, svc *device.Service) {
	r.POST("/devices/list", ApiListDevices(svc))
	r.GET("/devices/:id", ApiGetDevice(svc))
	r.PATCH("/devices/:id", ApiPatchDevice(svc))
	r.DELETE("/devices/:id", ApiDeleteDevice(svc))
	r.POST("/devices/:id/allow", ApiAllowDevice(svc))
	r.POST("/devices/:id/block", ApiBlockDevice(svc))
	r.GET("/subscriptions/:id/devices", ApiSubscriptionDevices(svc))
	r.POST("/subscriptions/:id/devices/clear", ApiClearSubscriptionDevices(svc))
	r.POST("/users/:user_id/devices/clear", ApiClearUserDevices(svc))
}
