package handlers

import (
	"context"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/fitcoach-bot/internal/conversation"
	"github.com/Proton-105/fitcoach-bot/internal/session"
	"github.com/Proton-105/fitcoach-bot/pkg/metrics"
)

// Start handles /start: it repeats whatever the chat is currently waiting
// for, which is the language choice for new chats.
func (h *Conversation) Start() Handler {
	return func(c telebot.Context) error {
		return h.withRecord(c, func(_ context.Context, rec *session.Record) error {
			reply := h.engine.Prompt(rec.Session)
			metrics.RecordTurn(channel, reply.Branch, 0)
			return h.deliver(c, rec, reply)
		})
	}
}

// Restart handles /restart and the start-again button.
func (h *Conversation) Restart() Handler {
	return func(c telebot.Context) error {
		if c.Callback() != nil {
			_ = c.Respond()
		}

		return h.withRecord(c, func(_ context.Context, rec *session.Record) error {
			start := time.Now()
			reply := h.engine.Restart(rec.Session)
			rec.LastPlan = nil
			metrics.RecordTurn(channel, reply.Branch, time.Since(start))
			return h.deliver(c, rec, reply)
		})
	}
}

// Language handles /language by forgetting the chosen language and asking again.
func (h *Conversation) Language() Handler {
	return func(c telebot.Context) error {
		return h.withRecord(c, func(_ context.Context, rec *session.Record) error {
			s := rec.Session.Clone()
			s.Language = conversation.LanguageUnset
			s.ResetFlow()

			reply := h.engine.Prompt(s)
			reply.NewState = &s
			return h.deliver(c, rec, reply)
		})
	}
}
