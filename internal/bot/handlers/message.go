package handlers

import (
	"context"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/fitcoach-bot/internal/conversation"
	"github.com/Proton-105/fitcoach-bot/internal/session"
	"github.com/Proton-105/fitcoach-bot/pkg/metrics"
)

// Text runs one conversation turn for a plain text message.
func (h *Conversation) Text() Handler {
	return func(c telebot.Context) error {
		utterance := strings.TrimSpace(c.Text())
		if utterance == "" {
			return nil
		}

		return h.withRecord(c, func(_ context.Context, rec *session.Record) error {
			start := time.Now()
			before := rec.Session

			reply, err := h.engine.Respond(before, utterance)
			if err != nil {
				metrics.RecordTurn(channel, "", time.Since(start))
				return err
			}

			switch reply.Branch {
			case conversation.BranchHandoff:
				h.recordHandoff(c, before, utterance)
			case conversation.BranchPlan:
				metrics.RecordPlan(before.CurrentFlow)
			}
			metrics.RecordTurn(channel, reply.Branch, time.Since(start))

			return h.deliver(c, rec, reply)
		})
	}
}
