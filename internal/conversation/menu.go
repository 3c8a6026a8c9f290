package conversation

import "fmt"

// menuBenefits is the number of benefit lines per menu card.
const menuBenefits = 3

// MenuOrder is the display order of the main-menu cards.
var MenuOrder = []Flow{FlowWeightLoss, FlowWeightGain, FlowWorkouts, FlowDiet}

// MenuOption is one main-menu card. Sending Title as an utterance selects the flow.
type MenuOption struct {
	ID          Flow     `json:"id"`
	Emoji       string   `json:"emoji"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Benefits    []string `json:"benefits"`
}

// Menu returns the localized main-menu cards.
func (e *Engine) Menu(lang Language) []MenuOption {
	options := make([]MenuOption, 0, len(MenuOrder))
	for _, flow := range MenuOrder {
		prefix := "menu." + string(flow) + "."

		benefits := make([]string, 0, menuBenefits)
		for i := 1; i <= menuBenefits; i++ {
			benefits = append(benefits, e.t(lang, fmt.Sprintf("%sbenefit_%d", prefix, i)))
		}

		options = append(options, MenuOption{
			ID:          flow,
			Emoji:       e.t(lang, prefix+"emoji"),
			Title:       e.t(lang, prefix+"title"),
			Description: e.t(lang, prefix+"description"),
			Benefits:    benefits,
		})
	}
	return options
}

// MenuLabels returns the card titles, suitable as quick replies.
func (e *Engine) MenuLabels(lang Language) []string {
	options := e.Menu(lang)
	labels := make([]string, len(options))
	for i, option := range options {
		labels[i] = option.Title
	}
	return labels
}
