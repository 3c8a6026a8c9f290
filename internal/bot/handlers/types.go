package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"
)

// Handler processes bot commands and text.
type Handler func(c telebot.Context) error

// CallbackHandler processes inline callback events.
type CallbackHandler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

const (
	contextKey  = "fitcoach.ctx"
	languageKey = "fitcoach.lang"
)

// WithContext attaches ctx to the update so later handlers share its values
// such as the correlation id.
func WithContext(c telebot.Context, ctx context.Context) {
	c.Set(contextKey, ctx)
}

// ContextOf returns the context stored by WithContext or context.Background.
func ContextOf(c telebot.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if ctx, ok := c.Get(contextKey).(context.Context); ok && ctx != nil {
		return ctx
	}
	return context.Background()
}

// ChatID returns the chat the update belongs to, or zero.
func ChatID(c telebot.Context) int64 {
	if c == nil {
		return 0
	}
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	if sender := c.Sender(); sender != nil {
		return sender.ID
	}
	return 0
}

// WithLanguage records the session language so error replies can be localized.
func WithLanguage(c telebot.Context, lang string) {
	c.Set(languageKey, lang)
}

// LanguageOf returns the language stored by WithLanguage, or "".
func LanguageOf(c telebot.Context) string {
	if c == nil {
		return ""
	}
	lang, _ := c.Get(languageKey).(string)
	return lang
}
