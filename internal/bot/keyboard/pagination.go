package keyboard

import (
	"fmt"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/fitcoach-bot/internal/i18n"
)

// PaginationButtons returns up to three inline buttons (prev, current page, next)
// allowing the caller to paginate using a shared action prefix.
func PaginationButtons(t i18n.Translator, action string, page, totalPages int) []InlineButton {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	buttons := make([]InlineButton, 0, 3)

	if page > 1 {
		buttons = append(buttons, InlineButton{
			Text:   translated(t, "pagination.prev", "◀️ Prev"),
			Unique: action,
			Data:   strconv.Itoa(page - 1),
		})
	}

	buttons = append(buttons, InlineButton{
		Text:   paginationLabel(t, page, totalPages),
		Unique: action,
		Data:   strconv.Itoa(page),
	})

	if page < totalPages {
		buttons = append(buttons, InlineButton{
			Text:   translated(t, "pagination.next", "Next ▶️"),
			Unique: action,
			Data:   strconv.Itoa(page + 1),
		})
	}

	return buttons
}

// PlanKeyboard is the inline keyboard sent under a rendered plan: day
// navigation followed by a start-again button.
func PlanKeyboard(t i18n.Translator, day, totalDays int) (*telebot.ReplyMarkup, error) {
	builder := NewInlineKeyboard()
	if totalDays > 1 {
		builder.AddRow(PaginationButtons(t, CallbackPlanDay, day, totalDays)...)
	}
	builder.AddRow(InlineButton{
		Text:   translated(t, "restart_btn", "🔄 Start again"),
		Unique: CallbackRestart,
	})
	return builder.Build()
}

// ParsePage extracts the page number from pagination callback data.
func ParsePage(data string) (int, error) {
	page, err := strconv.Atoi(strings.TrimSpace(data))
	if err != nil {
		return 0, fmt.Errorf("parse page %q: %w", data, err)
	}
	return page, nil
}

func translated(t i18n.Translator, key, fallback string) string {
	if t == nil {
		return fallback
	}

	text := strings.TrimSpace(t.T(key))
	if text == "" || text == key {
		return fallback
	}

	return text
}

func paginationLabel(t i18n.Translator, page, total int) string {
	format := translated(t, "pagination.day", "")
	if format == "" || strings.Count(format, "%d") != 2 {
		return fmt.Sprintf("Day %d/%d", page, total)
	}
	return fmt.Sprintf(format, page, total)
}
