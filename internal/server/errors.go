package server

import (
	"errors"
	"net/http"

	connectiondomain "github.com/finopslab/costlens/internal/connection/domain"
	costdomain "github.com/finopslab/costlens/internal/costanalysis/domain"
	refreshdomain "github.com/finopslab/costlens/internal/refresh/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, connectiondomain.ErrNotConfigured),
		errors.Is(err, connectiondomain.ErrNoStorage),
		errors.Is(err, connectiondomain.ErrNoCredential):
		return http.StatusBadRequest, errorPayload{
			Type:    "not_configured",
			Message: err.Error(),
		}
	case errors.Is(err, costdomain.ErrInvalidPeriod):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid reporting period",
		}
	case errors.Is(err, refreshdomain.ErrAlreadyRunning):
		return http.StatusConflict, errorPayload{
			Type:    "already_running",
			Message: "a refresh is already in progress for this customer",
		}
	case errors.Is(err, refreshdomain.ErrQueueFull):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "queue_full",
			Message: "refresh queue is full, retry later",
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
