// Package http содержит HTTP-обработчики Order Service (gin).
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sagacore/order-saga/pkg/logger"
	"github.com/sagacore/order-saga/services/order/internal/domain"
)

// ErrorResponse — стандартный формат ошибки API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError маппит доменную ошибку в HTTP статус. Ошибки приходят из
// domain как typed sentinel errors, без промежуточных кодов.
func writeError(c *gin.Context, err error, method string) {
	if err == nil {
		logger.Error().Str("method", method).Msg("writeError вызван с nil ошибкой — баг в коде")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "внутренняя ошибка сервера"})
		return
	}

	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
	case errors.Is(err, domain.ErrEmptyOrderItems),
		errors.Is(err, domain.ErrInvalidCustomerID),
		errors.Is(err, domain.ErrInvalidShippingAddress),
		errors.Is(err, domain.ErrInvalidProductID),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidPrice):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
	case errors.Is(err, domain.ErrOrderCannotCancel), errors.Is(err, domain.ErrOrderSagaActive):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict", Message: err.Error()})
	case errors.Is(err, domain.ErrDuplicateCorrelationID):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "already_exists", Message: err.Error()})
	default:
		log := logger.FromContext(c.Request.Context())
		log.Error().Err(err).Str("method", method).Msg("внутренняя ошибка")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "внутренняя ошибка сервера"})
	}
}
