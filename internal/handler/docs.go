package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# BD Pipeline Service

Sales pipeline backend. Every opportunity carries a win probability derived
from a coefficient table, a weighted amount and a monthly revenue forecast.

## Auth

All /api/v1/* routes require a Bearer JWT (HS256, claims user_id, team_id,
role). Coefficient writes and switch changes need the admin role.
Health, metrics and docs endpoints are public.

## Errors

Responses use {code, message, data, meta}. Validation failures return 400
with meta.field, unknown ids 404, storage failures 500 without detail.

## Routes

- GET /healthz
- GET /readyz
- GET /metrics
- GET /swagger/index.html
- GET /api/v1/opportunities
- POST /api/v1/opportunities
- POST /api/v1/opportunities/bulk-update
- GET /api/v1/opportunities/{id}
- PUT /api/v1/opportunities/{id}
- DELETE /api/v1/opportunities/{id}
- POST /api/v1/opportunities/{id}/duplicate
- PUT /api/v1/opportunities/{id}/status
- GET /api/v1/opportunities/{id}/activities
- POST /api/v1/opportunities/{id}/activities
- GET /api/v1/opportunities/{id}/revenue-distribution
- GET /api/v1/coefficients
- PUT /api/v1/coefficients
- PUT /api/v1/coefficients/active
- POST /api/v1/coefficients/cache/invalidate
- POST /api/v1/coefficients/score
- GET /api/v1/forecast?ids=1,2&year_from=2026&year_to=2027
- GET /api/v1/dashboard?scope=owner|team|global
- GET /api/v1/system-settings/switches
- PUT /api/v1/system-settings/switches/{name}
`)
	})
}
