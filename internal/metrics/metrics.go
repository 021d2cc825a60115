package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service metrics. A nil *Registry is valid and records
// nothing, so components can take it as an optional field.
type Registry struct {
	reg *prometheus.Registry

	Scores              *prometheus.CounterVec
	MissingCoefficients *prometheus.CounterVec
	CoefficientCache    *prometheus.CounterVec
	Recalculations      *prometheus.CounterVec
	ActivityRecords     *prometheus.CounterVec
	AuditForwards       *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Scores: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bdpipeline_probability_scores_total",
				Help: "Probability scores computed, by source (engine|override)",
			},
			[]string{"source"},
		),
		MissingCoefficients: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bdpipeline_missing_coefficients_total",
				Help: "Factor lookups that fell back to a neutral weight",
			},
			[]string{"factor"},
		),
		CoefficientCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bdpipeline_coefficient_cache_total",
				Help: "Coefficient cache lookups by result (hit|miss|error|reload)",
			},
			[]string{"result"},
		),
		Recalculations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bdpipeline_opportunity_writes_total",
				Help: "Opportunity writes by operation and whether derived values were recomputed",
			},
			[]string{"operation", "recalculated"},
		),
		ActivityRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bdpipeline_activity_records_total",
				Help: "Activity records by kind and result",
			},
			[]string{"kind", "result"},
		),
		AuditForwards: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bdpipeline_audit_forwards_total",
				Help: "Activity records handed to the audit-log service by result (sent|failed|dropped)",
			},
			[]string{"result"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bdpipeline_http_requests_total",
				Help: "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bdpipeline_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"route", "method"},
		),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.Scores,
		r.MissingCoefficients,
		r.CoefficientCache,
		r.Recalculations,
		r.ActivityRecords,
		r.AuditForwards,
		r.HTTPRequests,
		r.HTTPDuration,
	)
	return r
}

func (r *Registry) ObserveScore(source string) {
	if r == nil {
		return
	}
	r.Scores.WithLabelValues(source).Inc()
}

func (r *Registry) ObserveMissingCoefficient(factor string) {
	if r == nil {
		return
	}
	r.MissingCoefficients.WithLabelValues(factor).Inc()
}

func (r *Registry) ObserveCache(result string) {
	if r == nil {
		return
	}
	r.CoefficientCache.WithLabelValues(result).Inc()
}

func (r *Registry) ObserveWrite(operation string, recalculated bool) {
	if r == nil {
		return
	}
	r.Recalculations.WithLabelValues(operation, strconv.FormatBool(recalculated)).Inc()
}

func (r *Registry) ObserveActivity(kind string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.ActivityRecords.WithLabelValues(kind, result).Inc()
}

func (r *Registry) ObserveAuditForward(result string) {
	if r == nil {
		return
	}
	r.AuditForwards.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Middleware records request counts and latency keyed by the gin route
// template, never the raw path.
func (r *Registry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if r == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		r.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		r.HTTPDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}
