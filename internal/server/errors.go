package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/retainly/retainly/internal/customer/domain"
	featuredomain "github.com/retainly/retainly/internal/feature/domain"
	modeldomain "github.com/retainly/retainly/internal/model/domain"
	"github.com/retainly/retainly/internal/pipeline"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

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
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, customerdomain.ErrInvalidID),
		errors.Is(err, featuredomain.ErrValidation):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "invalid request",
		}
	case errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, featuredomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, featuredomain.ErrConflict),
		errors.Is(err, pipeline.ErrTrainingInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, modeldomain.ErrTrainingPrecondition):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "training_precondition",
			Message: "not enough labeled data to train",
		}
	case errors.Is(err, modeldomain.ErrModelUnavailable),
		errors.Is(err, modeldomain.ErrSchemaMismatch):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "model_unavailable",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
