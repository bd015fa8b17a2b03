package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/models"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// writeError maps a domain error onto an HTTP response. Unexpected errors are logged and
// answered with a generic retryable 500 so internals never leak to clients.
func writeError(c *gin.Context, err error, funcName string, data any) {
	span := trace.SpanFromContext(c.Request.Context())
	span.RecordError(err)

	var validationErr *models.ValidationError
	var shortageErr *models.InsufficientMaterialError
	var stockErr *models.NegativeStockError
	var stateErr *models.InvalidStateError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrValidation.Error(), "details": validationErr.Details})
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrInvalidMargin):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrRecordNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "status": stateErr.From})
	case errors.Is(err, models.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &shortageErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": models.ErrInsufficientMaterial.Error(), "shortages": shortageErr.Shortages})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     models.ErrNegativeStock.Error(),
			"item":      stockErr.Item,
			"item_id":   stockErr.ItemId,
			"on_hand":   stockErr.OnHand,
			"requested": stockErr.Requested,
		})
	case errors.Is(err, models.ErrNoRecipe), errors.Is(err, models.ErrInsufficientMaterial), errors.Is(err, models.ErrNegativeStock):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		span.SetStatus(codes.Error, err.Error())
		config.LogError(config.GetLogger(), "api", funcName, "request failed", data, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error, please retry", "retry": true})
	}
}

func badRequest(c *gin.Context, field string, reason string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrValidation.Error(), "details": map[string]string{field: reason}})
}
