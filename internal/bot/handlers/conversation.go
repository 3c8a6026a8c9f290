package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/fitcoach-bot/internal/bot/keyboard"
	"github.com/Proton-105/fitcoach-bot/internal/conversation"
	apperrors "github.com/Proton-105/fitcoach-bot/internal/errors"
	"github.com/Proton-105/fitcoach-bot/internal/handoff"
	"github.com/Proton-105/fitcoach-bot/internal/i18n"
	"github.com/Proton-105/fitcoach-bot/internal/plan"
	"github.com/Proton-105/fitcoach-bot/internal/session"
	"github.com/Proton-105/fitcoach-bot/pkg/metrics"
)

const channel = handoff.ChannelTelegram

// Translations resolves both single keys and per-language translators.
type Translations interface {
	conversation.Lookup
	Translator(lang string) i18n.Translator
}

// Conversation adapts the engine to Telegram. Unlike HTTP clients, Telegram
// cannot carry the session, so it is loaded and saved around every turn
// under a per-chat lock.
type Conversation struct {
	engine   *conversation.Engine
	sessions session.Storage
	locker   session.Locker
	tr       Translations
	recorder handoff.Recorder
	log      *slog.Logger
}

// NewConversation wires the Telegram conversation handlers. locker and recorder may be nil.
func NewConversation(
	engine *conversation.Engine,
	sessions session.Storage,
	locker session.Locker,
	tr Translations,
	recorder handoff.Recorder,
	log *slog.Logger,
) *Conversation {
	if log == nil {
		log = slog.Default()
	}

	return &Conversation{
		engine:   engine,
		sessions: sessions,
		locker:   locker,
		tr:       tr,
		recorder: recorder,
		log:      log,
	}
}

// withRecord runs fn with the chat's record and saves it afterwards unless fn fails.
func (h *Conversation) withRecord(c telebot.Context, fn func(ctx context.Context, rec *session.Record) error) error {
	chatID := ChatID(c)
	if chatID == 0 {
		h.log.Warn("update without chat, ignoring")
		return nil
	}

	ctx := ContextOf(c)

	if h.locker != nil {
		if err := h.locker.Lock(ctx, chatID); err != nil {
			if errors.Is(err, session.ErrLocked) {
				return apperrors.NewRateLimitError(1)
			}
			return apperrors.NewDatabaseError(err)
		}
		defer h.locker.Unlock(ctx, chatID)
	}

	rec, err := session.Load(ctx, h.sessions, chatID)
	if err != nil {
		return apperrors.NewDatabaseError(err)
	}
	WithLanguage(c, string(rec.Session.Language))

	if err := fn(ctx, rec); err != nil {
		return err
	}

	if err := h.sessions.Set(ctx, rec); err != nil {
		return apperrors.NewDatabaseError(err)
	}
	return nil
}

// deliver applies reply to rec and sends it to the chat.
func (h *Conversation) deliver(c telebot.Context, rec *session.Record, reply conversation.Reply) error {
	if reply.NewState != nil {
		rec.Session = *reply.NewState
		WithLanguage(c, string(rec.Session.Language))
	}
	lang := rec.Session.Language

	if reply.IsPlan && reply.Plan != nil {
		rec.LastPlan = reply.Plan
		if err := c.Send(reply.Message); err != nil {
			return err
		}
		if err := h.sendPlanDay(c, rec.LastPlan, lang, 1); err != nil {
			return err
		}
		return c.Send(h.tr.Lookup(string(lang), "plan_ready"), keyboard.QuickReplies(h.engine.MenuLabels(lang)))
	}

	quickReplies := reply.QuickReplies
	if len(quickReplies) == 0 && reply.IsMainMenu {
		quickReplies = h.engine.MenuLabels(lang)
	}

	return c.Send(reply.Message, keyboard.QuickReplies(quickReplies))
}

func (h *Conversation) sendPlanDay(c telebot.Context, doc *plan.Document, lang conversation.Language, day int) error {
	tr := h.tr.Translator(string(lang))
	day = plan.ClampDay(doc, day)

	markup, err := keyboard.PlanKeyboard(tr, day, doc.Days())
	if err != nil {
		return apperrors.NewInternalError("build plan keyboard", err)
	}

	return c.Send(plan.RenderText(doc, tr, day), markup)
}

func (h *Conversation) recordHandoff(c telebot.Context, s conversation.Session, utterance string) {
	metrics.RecordHandoff(channel)
	if h.recorder == nil {
		return
	}

	ctx := ContextOf(c)
	req := handoff.Request{
		Channel:    channel,
		SessionRef: strconv.FormatInt(ChatID(c), 10),
		Language:   string(s.Language),
		Flow:       string(s.CurrentFlow),
		Utterance:  utterance,
	}
	if err := h.recorder.Record(ctx, req); err != nil {
		metrics.RecordError(err)
		h.log.ErrorContext(ctx, "failed to record handoff request", slog.Any("error", err))
	}
}
