package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bdpipeline/internal/auth"
	"bdpipeline/internal/service"
)

type DashboardHandler struct {
	Service *service.DashboardService
	Logger  *zap.Logger
}

func (h *DashboardHandler) Register(api *gin.RouterGroup) {
	api.GET("/dashboard", h.summary)
}

// @Summary Pipeline dashboard
// @Tags dashboard
// @Param scope query string false "owner|team|global (default owner)"
// @Success 200 {object} service.Dashboard
// @Router /api/v1/dashboard [get]
func (h *DashboardHandler) summary(c *gin.Context) {
	claims, ok := auth.ClaimsFromGin(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "missing actor", nil)
		return
	}
	scope := service.Scope(strings.ToLower(strings.TrimSpace(c.DefaultQuery("scope", string(service.ScopeOwner)))))
	filter := service.DashboardFilter{Scope: scope, OwnerID: claims.UserID, TeamID: claims.TeamID}
	switch scope {
	case service.ScopeOwner:
	case service.ScopeTeam:
		if claims.TeamID == nil {
			badRequest(c, "caller has no team")
			return
		}
	case service.ScopeGlobal:
		if !strings.EqualFold(claims.Role, "admin") && !strings.EqualFold(claims.Role, "manager") {
			Error(c, http.StatusForbidden, "forbidden", nil)
			return
		}
	default:
		badRequest(c, "invalid scope")
		return
	}
	out, err := h.Service.Summary(c.Request.Context(), filter)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, out, nil)
}
