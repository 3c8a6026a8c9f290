package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/fitcoach-bot/internal/bot/handlers"
	"github.com/Proton-105/fitcoach-bot/internal/ratelimit"
)

// RateLimit enforces the configured limits per Telegram chat. Throttled
// updates get reply instead of a turn.
func RateLimit(guard *ratelimit.Guard, reply string, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil || guard == nil {
			return next
		}

		return func(c telebot.Context) error {
			chatID := handlers.ChatID(c)
			if chatID == 0 {
				return next(c)
			}

			ctx := handlers.ContextOf(c)
			err := guard.Allow(ctx, strconv.FormatInt(chatID, 10), chatID)
			if errors.Is(err, ratelimit.ErrLimitExceeded) {
				log.WarnContext(ctx, "chat throttled", slog.Int64("chat_id", chatID))
				if c.Callback() != nil {
					return c.Respond(&telebot.CallbackResponse{Text: reply})
				}
				return c.Send(reply)
			}

			return next(c)
		}
	}
}

// GinRateLimit enforces the configured limits per client address and answers
// throttled requests with 429 and a {"message": ...} body.
func GinRateLimit(guard *ratelimit.Guard, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if guard == nil {
			c.Next()
			return
		}

		err := guard.Allow(c.Request.Context(), c.ClientIP(), 0)
		if errors.Is(err, ratelimit.ErrLimitExceeded) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": message})
			return
		}

		c.Next()
	}
}
