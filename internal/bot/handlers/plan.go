package handlers

import (
	"context"
	"errors"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/fitcoach-bot/internal/bot/keyboard"
	"github.com/Proton-105/fitcoach-bot/internal/plan"
	"github.com/Proton-105/fitcoach-bot/internal/session"
)

// PlanDay handles the day pagination buttons under a plan by editing the
// message in place. Chats without a stored plan get the restart prompt.
func (h *Conversation) PlanDay() CallbackHandler {
	return func(c telebot.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}

		day, err := parseDay(cb.Data)
		if err != nil {
			h.log.Warn("malformed plan callback", "data", cb.Data)
			return c.Respond()
		}

		return h.withRecord(c, func(_ context.Context, rec *session.Record) error {
			_ = c.Respond()

			doc := rec.LastPlan
			if doc == nil || doc.Days() == 0 {
				return h.deliver(c, rec, h.engine.Restart(rec.Session))
			}

			tr := h.tr.Translator(string(rec.Session.Language))
			day = plan.ClampDay(doc, day)

			markup, err := keyboard.PlanKeyboard(tr, day, doc.Days())
			if err != nil {
				return err
			}

			err = c.Edit(plan.RenderText(doc, tr, day), markup)
			if errors.Is(err, telebot.ErrSameMessageContent) {
				return nil
			}
			return err
		})
	}
}

func parseDay(callbackData string) (int, error) {
	_, data, err := keyboard.DecodeCallback(callbackData)
	if err != nil {
		return 0, err
	}
	return keyboard.ParsePage(data)
}
