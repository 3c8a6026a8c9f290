package bot

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/fitcoach-bot/internal/bot/handlers"
	"github.com/Proton-105/fitcoach-bot/internal/conversation"
	errors "github.com/Proton-105/fitcoach-bot/internal/errors"
	"github.com/Proton-105/fitcoach-bot/pkg/logger"
	"github.com/Proton-105/fitcoach-bot/pkg/metrics"
)

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler, lookup conversation.Lookup) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					ctx := handlers.ContextOf(c)
					log.ErrorContext(ctx, "panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					appErr := errors.NewInternalError("panic recovered", fmt.Errorf("%v", r))
					metrics.RecordError(appErr)
					userKey := errors.KeyErrorGeneric
					if errHandler != nil {
						userKey, _ = errHandler.Handle(ctx, appErr)
					}

					if c != nil {
						if sendErr := c.Send(userMessage(lookup, c, userKey)); sendErr != nil {
							log.ErrorContext(ctx, "failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for handler failures.
func ErrorHandlingMiddleware(errHandler *errors.Handler, lookup conversation.Lookup) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			metrics.RecordError(err)
			userKey := errors.KeyErrorGeneric
			if errHandler != nil {
				userKey, _ = errHandler.Handle(handlers.ContextOf(c), err)
			}

			if c != nil {
				_ = c.Send(userMessage(lookup, c, userKey))
			}

			return nil
		}
	}
}

// LoggingMiddleware attaches a correlation id to the update and logs basic telemetry about it.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()

			ctx := logger.WithCorrelationID(handlers.ContextOf(c), "")
			handlers.WithContext(c, ctx)

			chatID := handlers.ChatID(c)
			kind := "message"
			if c.Callback() != nil {
				kind = "callback"
			}

			// message text is not logged; it carries health data
			log.DebugContext(ctx, "handling update", slog.Int64("chat_id", chatID), slog.String("kind", kind))
			err := next(c)
			log.InfoContext(ctx, "handled update",
				slog.Int64("chat_id", chatID),
				slog.String("kind", kind),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}

func userMessage(lookup conversation.Lookup, c telebot.Context, key string) string {
	if lookup == nil {
		return "Something went wrong. Please try again!"
	}
	return lookup.Lookup(handlers.LanguageOf(c), key)
}
