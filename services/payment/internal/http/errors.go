// Package http содержит HTTP-обработчики Payment Service (gin), обслуживающие
// только чтение состояния транзакций/возвратов — списание и компенсация
// идут через events/saga (services/payment/internal/saga).
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sagacore/order-saga/pkg/logger"
	"github.com/sagacore/order-saga/services/payment/internal/domain"
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
	case errors.Is(err, domain.ErrTransactionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
	default:
		log := logger.FromContext(c.Request.Context())
		log.Error().Err(err).Str("method", method).Msg("внутренняя ошибка")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "внутренняя ошибка сервера"})
	}
}
