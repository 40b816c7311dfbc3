// Package http содержит HTTP-обработчики Inventory Service (gin),
// обслуживающие только чтение каталога и резервирований — резервирование и
// освобождение идут через events/saga (services/inventory/internal/saga).
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sagacore/order-saga/pkg/logger"
	"github.com/sagacore/order-saga/services/inventory/internal/domain"
)

// ErrorResponse — стандартный формат ошибки API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, err error, method string) {
	if err == nil {
		logger.Error().Str("method", method).Msg("writeError вызван с nil ошибкой — баг в коде")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "внутренняя ошибка сервера"})
		return
	}

	switch {
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
	default:
		logger.FromContext(c.Request.Context()).Error().Err(err).Str("method", method).Msg("внутренняя ошибка")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "внутренняя ошибка сервера"})
	}
}
