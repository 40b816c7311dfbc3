// Package middleware предоставляет Gin middleware для логирования,
// трейсинга и обработки паник на HTTP-поверхности сервисов.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sagacore/order-saga/pkg/logger"
)

// Заголовки, через которые распространяется trace_id и correlation_id.
const (
	TraceIDHeader       = "X-Trace-ID"
	CorrelationIDHeader = "X-Correlation-ID"
)

// Tracing извлекает или генерирует trace_id/correlation_id, прикрепляет их
// к контексту запроса через pkg/logger и отражает их в ответных заголовках.
func Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		ctx := logger.NewContextWithIDs(c.Request.Context(), traceID, correlationID)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(TraceIDHeader, traceID)
		c.Writer.Header().Set(CorrelationIDHeader, correlationID)

		c.Next()
	}
}
