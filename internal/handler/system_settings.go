package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bdpipeline/internal/auth"
	"bdpipeline/internal/service"
)

type SystemSettingsHandler struct {
	Settings *service.SystemSettingsService
	Logger   *zap.Logger
}

func (h *SystemSettingsHandler) Register(api *gin.RouterGroup) {
	g := api.Group("/system-settings")
	g.GET("/switches", h.listSwitches)
	g.PUT("/switches/:name", auth.RequireRole("admin"), h.putSwitch)
}

// @Summary List feature switches
// @Tags system-settings
// @Success 200 {array} service.Switch
// @Router /api/v1/system-settings/switches [get]
func (h *SystemSettingsHandler) listSwitches(c *gin.Context) {
	items, err := h.Settings.Switches(c.Request.Context())
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, items, nil)
}

type switchRequest struct {
	Enabled *bool `json:"enabled"`
}

// @Summary Toggle a feature switch
// @Tags system-settings
// @Param name path string true "switch name"
// @Param body body switchRequest true "state"
// @Success 200 {object} service.Switch
// @Router /api/v1/system-settings/switches/{name} [put]
func (h *SystemSettingsHandler) putSwitch(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if !service.KnownSwitch(name) {
		Error(c, http.StatusNotFound, "unknown switch", nil)
		return
	}
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		badRequest(c, "enabled is required")
		return
	}
	if err := h.Settings.SetEnabled(c.Request.Context(), name, *req.Enabled); err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, service.Switch{Name: name, Enabled: *req.Enabled}, nil)
}
