package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/subpanel/internal/app/service/statistics"
	"github.com/fatflowers/subpanel/pkg/response"
)

// @Summary      Get Statistics (Admin)
// @Description  Computes the requested access and device statistics.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.StatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespStatistic
// @Router       /api/v1/admin/get_statistic [post]
func ApiGetStatistic(svc *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.StatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.GetStatistic(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminStatisticRoutes(r gin.IRouter, svc *statistics.Service) {
	r.POST("/get_statistic", ApiGetStatistic(svc))
}
