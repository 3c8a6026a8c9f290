package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Proton-105/fitcoach-bot/pkg/logger"
)

// RequestLogger assigns a correlation id to every HTTP request, echoes it in
// the response header and logs the request once it completes.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(c *gin.Context) {
		start := time.Now()

		ctx := logger.WithCorrelationID(c.Request.Context(), c.GetHeader(logger.CorrelationHeader))
		c.Request = c.Request.WithContext(ctx)
		correlationID := logger.CorrelationIDFromContext(ctx)
		c.Header(logger.CorrelationHeader, correlationID)

		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= 500 {
			level = slog.LevelError
		}

		log.LogAttrs(ctx, level, "handled http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
			slog.String("correlation_id", correlationID),
		)
	}
}
