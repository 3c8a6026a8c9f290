package keyboard

import (
	"unicode/utf8"

	telebot "gopkg.in/telebot.v3"
)

// shortLabel is the longest label that still shares a row with a neighbour.
const shortLabel = 18

// QuickReplies renders the engine's quick replies as a one-time reply
// keyboard. Short labels are paired two per row. An empty list removes any
// keyboard still shown to the user.
func QuickReplies(labels []string) *telebot.ReplyMarkup {
	if len(labels) == 0 {
		return &telebot.ReplyMarkup{RemoveKeyboard: true}
	}

	markup := &telebot.ReplyMarkup{
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}

	rows := make([]telebot.Row, 0, len(labels))
	for i := 0; i < len(labels); i++ {
		btn := markup.Text(labels[i])
		if i+1 < len(labels) && isShort(labels[i]) && isShort(labels[i+1]) {
			rows = append(rows, markup.Row(btn, markup.Text(labels[i+1])))
			i++
			continue
		}
		rows = append(rows, markup.Row(btn))
	}

	markup.Reply(rows...)
	return markup
}

func isShort(label string) bool {
	return utf8.RuneCountInString(label) <= shortLabel
}
