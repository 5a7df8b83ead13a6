package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/subpanel/internal/app/service/accesslog"
	"github.com/fatflowers/subpanel/pkg/response"
)

// @Summary      List Access Logs (Admin)
// @Description  Retrieves a paginated and filterable list of subscription access decisions.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body accesslog.ListRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespListAccessLogs
// @Router       /api/v1/admin/access-logs/list [post]
func ApiListAccessLogs(svc *accesslog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req accesslog.ListRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.List(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminAccessLogRoutes(r gin.IRouter, svc *accesslog.Service) {
	r.POST("/access-logs/list", ApiListAccessLogs(svc))
}
