package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bdpipeline/internal/cache"
	"bdpipeline/internal/opportunity"
	"bdpipeline/internal/probability"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, apiResponse{
		Code:    0,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail maps a service error onto the envelope. Persistence and other
// unexpected failures are logged and reported without detail.
func Fail(c *gin.Context, logger *zap.Logger, err error) {
	var ve *opportunity.ValidationError
	switch {
	case errors.As(err, &ve):
		Error(c, http.StatusBadRequest, ve.Error(), map[string]any{"field": ve.Field})
	case errors.Is(err, probability.ErrInvalidCoefficient):
		Error(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, opportunity.ErrNotFound), errors.Is(err, probability.ErrCoefficientNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, cache.ErrUnavailable):
		Error(c, http.StatusServiceUnavailable, "cache unavailable", nil)
	default:
		if logger != nil {
			logger.Error("request failed",
				zap.String("route", c.FullPath()),
				zap.String("request_id", RequestIDFrom(c)),
				zap.Error(err),
			)
		}
		Error(c, http.StatusInternalServerError, "internal error", nil)
	}
}

func badRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message, nil)
}
