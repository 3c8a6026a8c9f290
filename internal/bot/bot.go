// Package bot runs the FitCoach conversation over Telegram.
package bot

import (
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/fitcoach-bot/internal/bot/handlers"
	"github.com/Proton-105/fitcoach-bot/internal/bot/keyboard"
	"github.com/Proton-105/fitcoach-bot/internal/conversation"
	errors "github.com/Proton-105/fitcoach-bot/internal/errors"
	"github.com/Proton-105/fitcoach-bot/internal/idempotency"
	"github.com/Proton-105/fitcoach-bot/internal/middleware"
	"github.com/Proton-105/fitcoach-bot/internal/ratelimit"
	"github.com/Proton-105/fitcoach-bot/pkg/config"
)

// DefaultIdempotencyTTL bounds how long a handled update id is remembered.
const DefaultIdempotencyTTL = 24 * time.Hour

// Deps are the collaborators the bot routes updates to.
type Deps struct {
	Conversation   *handlers.Conversation
	Lookup         conversation.Lookup
	ErrHandler     *errors.Handler
	Idempotency    idempotency.Manager
	IdempotencyTTL time.Duration
	Guard          *ratelimit.Guard
}

// Bot wraps telebot.Bot with application dependencies required for handling updates.
type Bot struct {
	telebot *telebot.Bot
	log     *slog.Logger
	router  *Router
}

// New builds a telegram bot instance configured according to the application settings.
func New(cfg config.BotConfig, log *slog.Logger, deps Deps) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	settings := telebot.Settings{
		Token:   cfg.Token,
		OnError: func(err error, c telebot.Context) { log.Error("telebot error", slog.Any("error", err)) },
	}

	if cfg.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen: cfg.Listen,
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	b := &Bot{
		telebot: tb,
		log:     log,
		router:  newRouter(log, deps),
	}

	b.telebot.Handle(telebot.OnText, b.router.Route)
	b.telebot.Handle(telebot.OnCallback, b.router.Route)

	return b, nil
}

// newRouter registers the middleware chain and the conversation handlers.
func newRouter(log *slog.Logger, deps Deps) *Router {
	router := NewRouter(log)

	ttl := deps.IdempotencyTTL
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	rateLimited := "Too many messages. Please wait a moment and try again."
	if deps.Lookup != nil {
		rateLimited = deps.Lookup.Lookup("", errors.KeyRateLimited)
	}

	router.Use(LoggingMiddleware(log))
	router.Use(RecoveryMiddleware(log, deps.ErrHandler, deps.Lookup))
	router.Use(ErrorHandlingMiddleware(deps.ErrHandler, deps.Lookup))
	router.Use(middleware.Idempotency(deps.Idempotency, ttl, log))
	router.Use(middleware.Metrics)
	router.Use(middleware.RateLimit(deps.Guard, rateLimited, log))

	conv := deps.Conversation
	if conv == nil {
		return router
	}

	router.RegisterCommand(CommandStart, conv.Start())
	router.RegisterCommand(CommandRestart, conv.Restart())
	router.RegisterCommand(CommandLanguage, conv.Language())
	router.RegisterCallback(keyboard.CallbackPlanDay, conv.PlanDay())
	router.RegisterCallback(keyboard.CallbackRestart, handlers.CallbackHandler(conv.Restart()))
	router.SetDefault(conv.Text())

	return router
}

// Start runs the telegram bot event loop. It blocks until Stop is called.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.log.Info("starting telegram bot")
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}
