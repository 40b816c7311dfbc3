package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sagacore/order-saga/pkg/logger"
)

// Logging логирует каждый HTTP-запрос с длительностью, статусом и trace-информацией.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log := logger.FromContext(c.Request.Context())
		log.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}
