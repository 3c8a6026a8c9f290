package conversation

import "strings"

// All tables below are scanned in order and the first match wins. Inputs are
// expected to be trimmed and lower-cased already.

type languageRule struct {
	language Language
	contains []string
	exact    []string
}

var languageRules = []languageRule{
	{language: LanguageEnglish, contains: []string{"english", "🇬🇧"}, exact: []string{"en"}},
	{language: LanguageMalayalam, contains: []string{"malayalam", "മലയാളം", "🇮🇳"}, exact: []string{"ml"}},
}

var medicalKeywords = []string{
	"pregnant",
	"pregnancy",
	"diabetes",
	"medication",
	"heart",
	"surgery",
	"medical",
	"disease",
	"cancer",
	"hypertension",
	"asthma",
	"ഗർഭിണി",
	"പ്രമേഹം",
	"മരുന്നുകൾ",
	"ഹൃദയം",
	"ശസ്ത്രക്രിയ",
}

var handoffPhrases = []string{
	"talk to human",
	"human expert",
	"talk to agent",
	"yes, connect me",
	"മനുഷ്യനോട് സംസാരിക്കണം",
	"എഡ്മിൻ",
	"വ്യക്തിയോട് സംസാരിക്കണം",
	"അതെ, ബന്ധിപ്പിക്കുക",
}

// declinePhrases answer the medical disclaimer with "no"; matched exactly.
var declinePhrases = []string{
	"no thanks",
	"നന്ദി, വേണ്ട",
}

type flowPhrase struct {
	phrase string
	flow   Flow
}

var flowPhrases = []flowPhrase{
	{phrase: "weight loss", flow: FlowWeightLoss},
	{phrase: "weight gain", flow: FlowWeightGain},
	{phrase: "workouts", flow: FlowWorkouts},
	{phrase: "diet questions", flow: FlowDiet},
	{phrase: "ഭാരം കുറയ്ക്കൽ", flow: FlowWeightLoss},
	{phrase: "ഭാരം വർദ്ധിപ്പിക്കൽ", flow: FlowWeightGain},
	{phrase: "ഭക്ഷണ ചോദ്യങ്ങൾ", flow: FlowDiet},
	{phrase: "വ്യായാമം", flow: FlowWorkouts},
}

// DetectLanguage classifies input as a language selector.
func DetectLanguage(input string) (Language, bool) {
	for _, rule := range languageRules {
		for _, needle := range rule.contains {
			if strings.Contains(input, needle) {
				return rule.language, true
			}
		}
		for _, code := range rule.exact {
			if input == code {
				return rule.language, true
			}
		}
	}
	return LanguageUnset, false
}

// IsMedical reports whether input mentions a medical condition.
func IsMedical(input string) bool {
	return containsAny(input, medicalKeywords)
}

// IsHandoff reports whether input asks for a human.
func IsHandoff(input string) bool {
	return containsAny(input, handoffPhrases)
}

// IsDecline reports whether input declines the offered handoff.
func IsDecline(input string) bool {
	for _, phrase := range declinePhrases {
		if input == phrase {
			return true
		}
	}
	return false
}

// MatchFlow maps a menu choice to a flow.
func MatchFlow(input string) (Flow, bool) {
	for _, fp := range flowPhrases {
		if strings.Contains(input, fp.phrase) {
			return fp.flow, true
		}
	}
	return FlowNone, false
}

func containsAny(input string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(input, needle) {
			return true
		}
	}
	return false
}
