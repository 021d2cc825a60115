package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bdpipeline/internal/activity"
	"bdpipeline/internal/auth"
	"bdpipeline/internal/models"
	"bdpipeline/internal/opportunity"
	"bdpipeline/internal/probability"
	"bdpipeline/internal/repository"
	"bdpipeline/internal/service"
)

const maxBulkIDs = 200

var opportunityOrder = map[string]string{
	"created_at":        "created_at",
	"updated_at":        "updated_at",
	"project_name":      "name",
	"original_amount":   "original_amount",
	"weighted_amount":   "weighted_amount",
	"probability_score": "probability_score",
	"starting_date":     "starting_date",
	"closing_date":      "closing_date",
}

type OpportunityHandler struct {
	Repo     repository.OpportunityRepository
	Manager  *opportunity.Manager
	Activity *activity.Recorder
	Forecast *service.ForecastService
	Logger   *zap.Logger
}

func (h *OpportunityHandler) Register(api *gin.RouterGroup) {
	g := api.Group("/opportunities")
	g.GET("", h.list)
	g.POST("", h.create)
	g.POST("/bulk-update", h.bulkUpdate)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.remove)
	g.POST("/:id/duplicate", h.duplicate)
	g.PUT("/:id/status", h.changeStatus)
	g.GET("/:id/activities", h.listActivities)
	g.POST("/:id/activities", h.addActivity)
	g.GET("/:id/revenue-distribution", h.revenueDistribution)
}

type opportunityRequest struct {
	ProjectName            string           `json:"project_name"`
	UpdateNotes            string           `json:"update_notes"`
	ServiceType            string           `json:"service_type"`
	SectorType             string           `json:"sector_type"`
	OriginalAmount         *decimal.Decimal `json:"original_amount"`
	GrossMarginPercentage  *decimal.Decimal `json:"gross_margin_percentage"`
	ProjectType            *string          `json:"project_type"`
	ProjectMaturity        string           `json:"project_maturity"`
	ClientType             string           `json:"client_type"`
	ClientRelationship     string           `json:"client_relationship"`
	ConservativeApproach   bool             `json:"conservative_approach"`
	WinProbabilityOverride *decimal.Decimal `json:"win_probability_override"`
	StartingDate           string           `json:"starting_date"`
	ClosingDate            string           `json:"closing_date"`
	Status                 *string          `json:"status"`
	Stage                  *string          `json:"stage"`
	OwnerID                *uint64          `json:"owner_id"`
	TeamID                 *uint64          `json:"team_id"`
	ClientID               *uint64          `json:"client_id"`
}

func (r opportunityRequest) input() (opportunity.CreateInput, error) {
	if r.OriginalAmount == nil {
		return opportunity.CreateInput{}, &opportunity.ValidationError{Field: "original_amount", Message: "is required"}
	}
	start, err := parseDate("starting_date", r.StartingDate)
	if err != nil {
		return opportunity.CreateInput{}, err
	}
	end, err := parseDate("closing_date", r.ClosingDate)
	if err != nil {
		return opportunity.CreateInput{}, err
	}
	in := opportunity.CreateInput{
		Name:                 r.ProjectName,
		Notes:                r.UpdateNotes,
		ServiceType:          models.ServiceType(strings.TrimSpace(r.ServiceType)),
		SectorType:           models.SectorType(strings.TrimSpace(r.SectorType)),
		OriginalAmount:       *r.OriginalAmount,
		MarginPercentage:     r.GrossMarginPercentage,
		ProjectType:          r.ProjectType,
		ProjectMaturity:      models.ProjectMaturity(strings.TrimSpace(r.ProjectMaturity)),
		ClientType:           models.ClientType(strings.TrimSpace(r.ClientType)),
		ClientRelationship:   models.ClientRelationship(strings.TrimSpace(r.ClientRelationship)),
		ConservativeApproach: r.ConservativeApproach,
		ProbabilityOverride:  r.WinProbabilityOverride,
		StartingDate:         start,
		ClosingDate:          end,
		OwnerID:              r.OwnerID,
		TeamID:               r.TeamID,
		ClientID:             r.ClientID,
	}
	if r.Status != nil {
		v := models.OpportunityStatus(strings.TrimSpace(*r.Status))
		in.Status = &v
	}
	if r.Stage != nil {
		v := models.OpportunityStage(strings.TrimSpace(*r.Stage))
		in.Stage = &v
	}
	return in, nil
}

type patchRequest struct {
	ProjectName                 *string          `json:"project_name"`
	UpdateNotes                 *string          `json:"update_notes"`
	ServiceType                 *string          `json:"service_type"`
	SectorType                  *string          `json:"sector_type"`
	OriginalAmount              *decimal.Decimal `json:"original_amount"`
	GrossMarginPercentage       *decimal.Decimal `json:"gross_margin_percentage"`
	ProjectType                 *string          `json:"project_type"`
	ProjectMaturity             *string          `json:"project_maturity"`
	ClientType                  *string          `json:"client_type"`
	ClientRelationship          *string          `json:"client_relationship"`
	ConservativeApproach        *bool            `json:"conservative_approach"`
	WinProbabilityOverride      *decimal.Decimal `json:"win_probability_override"`
	ClearWinProbabilityOverride bool             `json:"clear_win_probability_override"`
	StartingDate                *string          `json:"starting_date"`
	ClosingDate                 *string          `json:"closing_date"`
	Status                      *string          `json:"status"`
	Stage                       *string          `json:"stage"`
	OwnerID                     *uint64          `json:"owner_id"`
	TeamID                      *uint64          `json:"team_id"`
	ClientID                    *uint64          `json:"client_id"`
}

func (r patchRequest) patch() (opportunity.Patch, error) {
	start, err := parseDatePtr("starting_date", r.StartingDate)
	if err != nil {
		return opportunity.Patch{}, err
	}
	end, err := parseDatePtr("closing_date", r.ClosingDate)
	if err != nil {
		return opportunity.Patch{}, err
	}
	p := opportunity.Patch{
		Name:                     r.ProjectName,
		Notes:                    r.UpdateNotes,
		OriginalAmount:           r.OriginalAmount,
		MarginPercentage:         r.GrossMarginPercentage,
		ProjectType:              r.ProjectType,
		ConservativeApproach:     r.ConservativeApproach,
		ProbabilityOverride:      r.WinProbabilityOverride,
		ClearProbabilityOverride: r.ClearWinProbabilityOverride,
		StartingDate:             start,
		ClosingDate:              end,
		OwnerID:                  r.OwnerID,
		TeamID:                   r.TeamID,
		ClientID:                 r.ClientID,
	}
	p.ServiceType = enumPtr[models.ServiceType](r.ServiceType)
	p.SectorType = enumPtr[models.SectorType](r.SectorType)
	p.ProjectMaturity = enumPtr[models.ProjectMaturity](r.ProjectMaturity)
	p.ClientType = enumPtr[models.ClientType](r.ClientType)
	p.ClientRelationship = enumPtr[models.ClientRelationship](r.ClientRelationship)
	p.Status = enumPtr[models.OpportunityStatus](r.Status)
	p.Stage = enumPtr[models.OpportunityStage](r.Stage)
	return p, nil
}

func enumPtr[T ~string](v *string) *T {
	if v == nil {
		return nil
	}
	out := T(strings.TrimSpace(*v))
	return &out
}

type opportunityView struct {
	*models.Opportunity
	Breakdown *probability.Breakdown `json:"probability_breakdown,omitempty"`
}

type updateResult struct {
	Opportunity  *models.Opportunity       `json:"opportunity"`
	Changes      []opportunity.FieldChange `json:"changes"`
	Recalculated bool                      `json:"recalculated"`
}

// @Summary List opportunities
// @Tags opportunities
// @Param status query string false "status"
// @Param stage query string false "stage"
// @Param owner_id query int false "owner"
// @Param team_id query int false "team"
// @Param sort_by query string false "created_at|updated_at|project_name|original_amount|weighted_amount|probability_score|starting_date|closing_date"
// @Param order query string false "asc|desc"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} map[string]any
// @Router /api/v1/opportunities [get]
func (h *OpportunityHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListOpportunitiesParams{
		Limit:       limit,
		Offset:      offset,
		Status:      strQueryPtr(c, "status"),
		Stage:       strQueryPtr(c, "stage"),
		OwnerID:     uint64QueryPtr(c, "owner_id"),
		TeamID:      uint64QueryPtr(c, "team_id"),
		ServiceType: strQueryPtr(c, "service_type"),
		SectorType:  strQueryPtr(c, "sector_type"),
		MinAmount:   decimalQueryPtr(c, "min_amount"),
		MaxAmount:   decimalQueryPtr(c, "max_amount"),
		OrderBy:     parseOrder(c.Query("sort_by"), opportunityOrder),
	}
	if strings.EqualFold(strings.TrimSpace(c.Query("order")), "asc") {
		params.Asc = boolPtr(true)
	}
	items, err := h.Repo.ListOpportunities(c.Request.Context(), params)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	total, err := h.Repo.CountOpportunities(c.Request.Context(), params)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	if items == nil {
		items = []models.Opportunity{}
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Create opportunity
// @Tags opportunities
// @Accept json
// @Param body body opportunityRequest true "opportunity"
// @Success 201 {object} models.Opportunity
// @Failure 400 {object} map[string]any
// @Router /api/v1/opportunities [post]
func (h *OpportunityHandler) create(c *gin.Context) {
	actor, ok := auth.ActorFromGin(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "missing actor", nil)
		return
	}
	var req opportunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}
	in, err := req.input()
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	opp, err := h.Manager.Create(c.Request.Context(), actor, in)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Created(c, opp)
}

// @Summary Get opportunity
// @Tags opportunities
// @Param id path int true "opportunity id"
// @Param breakdown query bool false "include the probability breakdown"
// @Success 200 {object} models.Opportunity
// @Failure 404 {object} map[string]any
// @Router /api/v1/opportunities/{id} [get]
func (h *OpportunityHandler) get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		badRequest(c, "invalid id")
		return
	}
	opp, err := h.Manager.Get(c.Request.Context(), id)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	view := opportunityView{Opportunity: opp}
	if boolQueryDefault(c, "breakdown", false) {
		b := h.Manager.Breakdown(c.Request.Context(), opp)
		view.Breakdown = &b
	}
	Ok(c, view, nil)
}

// @Summary Update opportunity
// @Tags opportunities
// @Accept json
// @Param id path int true "opportunity id"
// @Param body body patchRequest true "fields to change"
// @Success 200 {object} map[string]any
// @Router /api/v1/opportunities/{id} [put]
func (h *OpportunityHandler) update(c *gin.Context) {
	actor, ok := auth.ActorFromGin(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "missing actor", nil)
		return
	}
	id, ok := idParam(c)
	if !ok {
		badRequest(c, "invalid id")
		return
	}
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}
	p, err := req.patch()
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	opp, changes, err := h.Manager.Update(c.Request.Context(), actor, id, p)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	if changes == nil {
		changes = []opportunity.FieldChange{}
	}
	Ok(c, updateResult{
		Opportunity:  opp,
		Changes:      changes,
		Recalculated: opportunity.NeedsRecalculation(changes),
	}, nil)
}

// @Summary Delete opportunity
// @Tags opportunities
// @Param id path int true "opportunity id"
// @Success 200 {object} map[string]any
// @Router /api/v1/opportunities/{id} [delete]
func (h *OpportunityHandler) remove(c *gin.Context) {
	actor, ok := auth.ActorFromGin(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "missing actor", nil)
		return
	}
	id, ok := idParam(c)
	if !ok {
		badRequest(c, "invalid id")
		return
	}
	if err := h.Manager.Delete(c.Request.Context(), actor, id); err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, gin.H{"id": id, "deleted": true}, nil)
}

type duplicateRequest struct {
	ProjectName string `json:"project_name"`
}

// @Summary Duplicate opportunity
// @Tags opportunities
// @Param id path int true "source opportunity id"
// @Param body body duplicateRequest false "name of the copy"
// @Success 201 {object} models.Opportunity
// @Router /api/v1/opportunities/{id}/duplicate [post]
func (h *OpportunityHandler) duplicate(c *gin.Context) {
	actor, ok := auth.ActorFromGin(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "missing actor", nil)
		return
	}
	id, ok := idParam(c)
	if !ok {
		badRequest(c, "invalid id")
		return
	}
	var req duplicateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid json body")
			return
		}
	}
	opp, err := h.Manager.Duplicate(c.Request.Context(), actor, id, req.ProjectName)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Created(c, opp)
}

type statusRequest struct {
	Status      string  `json:"status"`
	Stage       *string `json:"stage"`
	UpdateNotes *string `json:"update_notes"`
}

// @Summary Change status
// @Tags opportunities
// @Param id path int true "opportunity id"
// @Param body body statusRequest true "new status"
// @Success 200 {object} models.Opportunity
// @Router /api/v1/opportunities/{id}/status [put]
func (h *OpportunityHandler) changeStatus(c *gin.Context) {
	actor, ok := auth.ActorFromGin(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "missing actor", nil)
		return
	}
	id, ok := idParam(c)
	if !ok {
		badRequest(c, "invalid id")
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}
	status := models.OpportunityStatus(strings.TrimSpace(req.Status))
	opp, err := h.Manager.ChangeStatus(c.Request.Context(), actor, id, status, enumPtr[models.OpportunityStage](req.Stage), req.UpdateNotes)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, opp, nil)
}

type bulkUpdateRequest struct {
	IDs    []uint64     `json:"ids"`
	Fields patchRequest `json:"fields"`
}

// @Summary Bulk update
// @Tags opportunities
// @Param body body bulkUpdateRequest true "ids and fields"
// @Success 200 {object} opportunity.BulkResult
// @Router /api/v1/opportunities/bulk-update [post]
func (h *OpportunityHandler) bulkUpdate(c *gin.Context) {
	actor, ok := auth.ActorFromGin(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "missing actor", nil)
		return
	}
	var req bulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}
	if len(req.IDs) == 0 {
		badRequest(c, "ids is required")
		return
	}
	if len(req.IDs) > maxBulkIDs {
		badRequest(c, "too many ids")
		return
	}
	p, err := req.Fields.patch()
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, h.Manager.BulkUpdate(c.Request.Context(), actor, req.IDs, p), nil)
}

// @Summary List activities
// @Tags opportunities
// @Param id path int true "opportunity id"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {array} models.ActivityLog
// @Router /api/v1/opportunities/{id}/activities [get]
func (h *OpportunityHandler) listActivities(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		badRequest(c, "invalid id")
		return
	}
	if _, err := h.Manager.Get(c.Request.Context(), id); err != nil {
		Fail(c, h.Logger, err)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	page, err := h.Activity.List(c.Request.Context(), id, limit, offset)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	items := page.Items
	if items == nil {
		items = []models.ActivityLog{}
	}
	Ok(c, items, paginationMeta(limit, offset, page.Total))
}

type activityRequest struct {
	ActivityType string `json:"activity_type"`
	Description  string `json:"description"`
}

// @Summary Log an activity
// @Tags opportunities
// @Param id path int true "opportunity id"
// @Param body body activityRequest true "activity"
// @Success 201 {object} map[string]any
// @Router /api/v1/opportunities/{id}/activities [post]
func (h *OpportunityHandler) addActivity(c *gin.Context) {
	actor, ok := auth.ActorFromGin(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "missing actor", nil)
		return
	}
	id, ok := idParam(c)
	if !ok {
		badRequest(c, "invalid id")
		return
	}
	var req activityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}
	kind := models.ActivityKind(strings.TrimSpace(req.ActivityType))
	if err := h.Manager.AddActivity(c.Request.Context(), actor, id, kind, req.Description); err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Created(c, gin.H{"opportunity_id": id, "activity_type": kind})
}

// @Summary Revenue distribution
// @Tags opportunities
// @Param id path int true "opportunity id"
// @Success 200 {object} service.OpportunityForecast
// @Router /api/v1/opportunities/{id}/revenue-distribution [get]
func (h *OpportunityHandler) revenueDistribution(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		badRequest(c, "invalid id")
		return
	}
	out, err := h.Forecast.Opportunity(c.Request.Context(), id)
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, out, nil)
}
