package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bdpipeline/internal/auth"
	"bdpipeline/internal/models"
	"bdpipeline/internal/probability"
)

type CoefficientHandler struct {
	Service *probability.CoefficientService
	Engine  *probability.Engine
	Logger  *zap.Logger
}

func (h *CoefficientHandler) Register(api *gin.RouterGroup) {
	g := api.Group("/coefficients")
	g.GET("", h.list)
	g.POST("/score", h.score)
	admin := g.Group("", auth.RequireRole("admin"))
	admin.PUT("", h.upsert)
	admin.PUT("/active", h.setActive)
	admin.POST("/cache/invalidate", h.invalidate)
}

// @Summary List coefficients grouped by factor
// @Tags coefficients
// @Param active_only query bool false "only active rows"
// @Success 200 {array} probability.FactorGroup
// @Router /api/v1/coefficients [get]
func (h *CoefficientHandler) list(c *gin.Context) {
	groups, err := h.Service.List(c.Request.Context(), boolQueryDefault(c, "active_only", false))
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, groups, nil)
}

type coefficientRequest struct {
	FactorType  string          `json:"factor_type"`
	FactorValue string          `json:"factor_value"`
	Coefficient decimal.Decimal `json:"coefficient"`
}

// @Summary Create or replace a coefficient
// @Tags coefficients
// @Param body body coefficientRequest true "coefficient"
// @Success 200 {object} models.Coefficient
// @Router /api/v1/coefficients [put]
func (h *CoefficientHandler) upsert(c *gin.Context) {
	var req coefficientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}
	item, err := h.Service.Upsert(c.Request.Context(), models.FactorType(strings.TrimSpace(req.FactorType)), req.FactorValue, req.Coefficient)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	if h.Logger != nil {
		h.Logger.Info("coefficient updated",
			zap.String("factor_type", string(item.FactorType)),
			zap.String("factor_value", item.FactorValue),
			zap.String("coefficient", item.Weight.String()),
		)
	}
	Ok(c, item, nil)
}

type activeRequest struct {
	FactorType  string `json:"factor_type"`
	FactorValue string `json:"factor_value"`
	Active      *bool  `json:"is_active"`
}

// @Summary Activate or deactivate a coefficient
// @Tags coefficients
// @Param body body activeRequest true "flag"
// @Success 200 {object} map[string]any
// @Router /api/v1/coefficients/active [put]
func (h *CoefficientHandler) setActive(c *gin.Context) {
	var req activeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}
	if req.Active == nil {
		badRequest(c, "is_active is required")
		return
	}
	factor := models.FactorType(strings.TrimSpace(req.FactorType))
	value := strings.TrimSpace(req.FactorValue)
	if err := h.Service.SetActive(c.Request.Context(), factor, value, *req.Active); err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, gin.H{"factor_type": factor, "factor_value": value, "is_active": *req.Active}, nil)
}

// @Summary Drop the cached coefficient table
// @Tags coefficients
// @Success 200 {object} map[string]any
// @Router /api/v1/coefficients/cache/invalidate [post]
func (h *CoefficientHandler) invalidate(c *gin.Context) {
	if err := h.Service.Invalidate(c.Request.Context()); err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, gin.H{"invalidated": true}, nil)
}

// @Summary Score factors without saving
// @Tags coefficients
// @Param body body probability.Factors true "factors"
// @Success 200 {object} probability.Breakdown
// @Router /api/v1/coefficients/score [post]
func (h *CoefficientHandler) score(c *gin.Context) {
	var f probability.Factors
	if err := c.ShouldBindJSON(&f); err != nil {
		badRequest(c, "invalid json body")
		return
	}
	if h.Engine == nil {
		Error(c, http.StatusInternalServerError, "engine unavailable", nil)
		return
	}
	Ok(c, h.Engine.ScoreWithBreakdown(c.Request.Context(), f), nil)
}
