package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/subpanel/internal/app/service/softwarerule"
	"github.com/fatflowers/subpanel/pkg/response"
)

// @Summary      List Software Rules (Admin)
// @Tags         Admin
// @Produce      json
// @Param        active_only  query  bool    false  "Only active rules"
// @Param        keyword      query  string  false  "Matches software name or pattern"
// @Success      200  {object}  handlers.RespSoftwareRules
// @Router       /api/v1/admin/software-rules [get]
func ApiListSoftwareRules(svc *softwarerule.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req softwarerule.ListRulesRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		rows, err := svc.List(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

// @Summary      Get Software Rule (Admin)
// @Tags         Admin
// @Produce      json
// @Param        id   path  string  true  "Rule ID"
// @Success      200  {object}  handlers.RespSoftwareRule
// @Router       /api/v1/admin/software-rules/{id} [get]
func ApiGetSoftwareRule(svc *softwarerule.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		row, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(row))
	}
}

// @Summary      Create Software Rule (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request  body  softwarerule.CreateRuleRequest  true  "Rule"
// @Success      200  {object}  handlers.RespSoftwareRule
// @Router       /api/v1/admin/software-rules [post]
func ApiCreateSoftwareRule(svc *softwarerule.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req softwarerule.CreateRuleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		row, err := svc.Create(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(row))
	}
}

// @Summary      Update Software Rule (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id       path  string                  true  "Rule ID"
// @Param        request  body  softwarerule.RulePatch  true  "Fields to change"
// @Success      200  {object}  handlers.RespSoftwareRule
// @Router       /api/v1/admin/software-rules/{id} [patch]
func ApiUpdateSoftwareRule(svc *softwarerule.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch softwarerule.RulePatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			badRequest(c, err.Error())
			return
		}
		row, err := svc.Update(c.Request.Context(), c.Param("id"), &patch)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(row))
	}
}

// @Summary      Delete Software Rule (Admin)
// @Tags         Admin
// @Produce      json
// @Param        id   path  string  true  "Rule ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/software-rules/{id} [delete]
func ApiDeleteSoftwareRule(svc *softwarerule.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

func RegisterAdminSoftwareRuleRoutes(r gin.IRouter, svc *softwarerule.Service) {
	r.GET("/software-rules", ApiListSoftwareRules(svc))
	r.POST("/software-rules", ApiCreateSoftwareRule(svc))
	r.GET("/software-rules/:id", ApiGetSoftwareRule(svc))
	r.PATCH("/software-rules/:id", ApiUpdateSoftwareRule(svc))
	r.DELETE("/software-rules/:id", ApiDeleteSoftwareRule(svc))
}
