package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bdpipeline/internal/revenue"
	"bdpipeline/internal/service"
)

type ForecastHandler struct {
	Service *service.ForecastService
	Logger  *zap.Logger
}

func (h *ForecastHandler) Register(api *gin.RouterGroup) {
	api.GET("/forecast", h.aggregate)
}

// @Summary Aggregate revenue forecast
// @Tags forecast
// @Param ids query string true "comma separated opportunity ids"
// @Param year_from query int false "first year"
// @Param year_to query int false "last year"
// @Success 200 {object} revenue.Rollup
// @Router /api/v1/forecast [get]
func (h *ForecastHandler) aggregate(c *gin.Context) {
	ids, ok := idsQuery(c, "ids")
	if !ok {
		badRequest(c, "invalid ids")
		return
	}
	if len(ids) == 0 {
		badRequest(c, "ids is required")
		return
	}
	years := revenue.YearRange{
		From: intQueryPtr(c, "year_from"),
		To:   intQueryPtr(c, "year_to"),
	}
	rollup, err := h.Service.Aggregate(c.Request.Context(), ids, years)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, rollup, map[string]any{"opportunities": len(ids)})
}
