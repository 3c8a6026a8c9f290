package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/fitcoach-bot/internal/bot/handlers"
	"github.com/Proton-105/fitcoach-bot/internal/idempotency"
)

// Idempotency ensures handlers execute at most once per Telegram update.
// Redelivered updates are acknowledged silently.
func Idempotency(manager idempotency.Manager, ttl time.Duration, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			updateID := c.Update().ID
			if updateID == 0 {
				return next(c)
			}

			ctx := handlers.ContextOf(c)
			key := idempotency.UpdateKey(handlers.ChatID(c), updateID)

			err := manager.Execute(ctx, key, ttl, func(context.Context) error {
				return next(c)
			})
			switch {
			case err == nil:
				return nil
			case errors.Is(err, idempotency.ErrDuplicate), errors.Is(err, idempotency.ErrRequestInProgress):
				log.DebugContext(ctx, "skipping redelivered update", slog.Int("update_id", updateID), slog.Any("reason", err))
				return nil
			default:
				return err
			}
		}
	}
}
