package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/fitcoach-bot/internal/bot/handlers"
	"github.com/Proton-105/fitcoach-bot/pkg/metrics"
)

// Metrics counts handled Telegram updates by kind and outcome.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordUpdate(updateKind(c), status)

		return err
	}
}

// GinMetrics records request counts and latency per matched route.
func GinMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.RecordHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

func updateKind(c telebot.Context) string {
	switch {
	case c == nil:
		return "unknown"
	case c.Callback() != nil:
		return "callback"
	case c.Message() != nil && c.Message().IsService():
		return "service"
	case len(c.Entities()) > 0 && c.Entities()[0].Type == telebot.EntityCommand:
		return "command"
	case c.Text() != "":
		return "text"
	default:
		return "other"
	}
}
