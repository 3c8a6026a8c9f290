package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/fitcoach-bot/internal/conversation"
	apperrors "github.com/Proton-105/fitcoach-bot/internal/errors"
	"github.com/Proton-105/fitcoach-bot/internal/handoff"
	"github.com/Proton-105/fitcoach-bot/internal/lifecycle"
	"github.com/Proton-105/fitcoach-bot/internal/middleware"
	"github.com/Proton-105/fitcoach-bot/internal/ratelimit"
)

// Deps carries everything the HTTP transport needs.
type Deps struct {
	Engine     *conversation.Engine
	Lookup     conversation.Lookup
	Recorder   handoff.Recorder
	ErrHandler *apperrors.Handler
	Guard      *ratelimit.Guard
	Probes     lifecycle.HealthChecker
	Logger     *slog.Logger
}

// NewRouter builds the gin engine with the chat, probe and metrics routes.
func NewRouter(d Deps) *gin.Engine {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	lang := string(conversation.LanguageEnglish)

	r := gin.New()
	r.Use(
		middleware.RequestLogger(log),
		middleware.GinRecovery(d.ErrHandler, d.Lookup.Lookup(lang, apperrors.KeyErrorGeneric), log),
		middleware.GinMetrics(),
	)

	health := NewHealthController(d.Probes)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	chat := NewChatController(d.Engine, d.Lookup, d.Recorder, d.ErrHandler, log)
	apiGroup := r.Group("/api")
	apiGroup.Use(middleware.GinRateLimit(d.Guard, d.Lookup.Lookup(lang, apperrors.KeyRateLimited)))
	{
		apiGroup.POST("/chat", chat.Chat)
		apiGroup.POST("/chat/restart", chat.Restart)
		apiGroup.GET("/menu", chat.Menu)
	}

	return r
}
