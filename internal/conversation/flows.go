package conversation

import (
	"math"
	"strconv"
	"strings"
)

// FlowSpec is the script of one flow: its intro text and the ordered slots it collects.
type FlowSpec struct {
	IntroKey string
	Slots    []SlotName
}

// FlowTable maps each selectable flow to its script.
type FlowTable map[Flow]FlowSpec

// weightLossSlots is the only slot order in use; every flow collects it.
var weightLossSlots = []SlotName{
	SlotCurrentWeight,
	SlotTargetWeight,
	SlotHeight,
	SlotWrist,
	SlotAge,
	SlotGender,
	SlotActivityLevel,
	SlotFoodPref,
	SlotAllergies,
}

var promptKeys = map[SlotName]string{
	SlotCurrentWeight: "ask_current_weight",
	SlotTargetWeight:  "ask_target_weight",
	SlotHeight:        "ask_height",
	SlotWrist:         "ask_wrist",
	SlotAge:           "ask_age",
	SlotGender:        "ask_gender",
	SlotActivityLevel: "ask_activity_level",
	SlotFoodPref:      "ask_food_pref",
	SlotAllergies:     "ask_allergies",
}

// skipTokens are accepted in either language regardless of the session language.
var skipTokens = []string{"skip", "ഒഴിവാക്കുക"}

// DefaultFlowTable returns the four menu flows. Weight gain, workouts and diet
// reuse the weight-loss slot order and plan.
func DefaultFlowTable() FlowTable {
	return FlowTable{
		FlowWeightLoss: {IntroKey: "weight_loss_intro", Slots: weightLossSlots},
		FlowWeightGain: {IntroKey: "weight_gain_intro", Slots: weightLossSlots},
		FlowWorkouts:   {IntroKey: "workouts_intro", Slots: weightLossSlots},
		FlowDiet:       {IntroKey: "diet_intro", Slots: weightLossSlots},
	}
}

// Normalize repairs s in place and reports whether it changed:
// unknown language becomes unset, unknown flow becomes none, CollectedSlots is
// cut to the longest prefix of the flow's slot order backed by a fitting value,
// and Slots keeps only the entries named in that prefix.
func (t FlowTable) Normalize(s *Session) bool {
	changed := false

	if s.Slots == nil {
		s.Slots = Slots{}
	}
	if s.CollectedSlots == nil {
		s.CollectedSlots = []SlotName{}
	}

	if s.Language != LanguageUnset && !s.Language.Valid() {
		s.Language = LanguageUnset
		changed = true
	}

	spec, ok := t[s.CurrentFlow]
	if s.CurrentFlow != FlowNone && !ok {
		s.CurrentFlow = FlowNone
		changed = true
	}

	if s.CurrentFlow == FlowNone {
		if len(s.Slots) > 0 || len(s.CollectedSlots) > 0 {
			s.Slots = Slots{}
			s.CollectedSlots = []SlotName{}
			changed = true
		}
		return changed
	}

	valid := 0
	for i, name := range s.CollectedSlots {
		if i >= len(spec.Slots) || name != spec.Slots[i] {
			break
		}
		value, ok := s.Slots[name]
		if !ok || !valueFits(name, value) {
			break
		}
		valid++
	}
	if valid < len(s.CollectedSlots) {
		s.CollectedSlots = s.CollectedSlots[:valid]
		changed = true
	}

	kept := make(map[SlotName]struct{}, valid)
	for _, name := range s.CollectedSlots {
		kept[name] = struct{}{}
	}
	for name := range s.Slots {
		if _, ok := kept[name]; !ok {
			delete(s.Slots, name)
			changed = true
		}
	}

	return changed
}

// PromptKey returns the translation key that asks for slot.
func PromptKey(slot SlotName) string {
	if key, ok := promptKeys[slot]; ok {
		return key
	}
	return "ask_" + string(slot)
}

// IsMeasurement reports whether slot holds a weight or length.
func IsMeasurement(slot SlotName) bool {
	name := string(slot)
	return strings.HasSuffix(name, "_kg") || strings.HasSuffix(name, "_cm")
}

// IsSkipToken reports whether input is a skip request.
func IsSkipToken(input string) bool {
	for _, token := range skipTokens {
		if input == token {
			return true
		}
	}
	return false
}

// ValidateSlot checks normalized input against the rule for slot and returns
// the value to store. Numbers must be plain decimals: "12kg", "1_000", "1e3"
// and "+5" are all rejected.
func ValidateSlot(slot SlotName, input string) (SlotValue, bool) {
	switch {
	case IsMeasurement(slot):
		if IsSkipToken(input) {
			return NotAnswered, true
		}
		if !isPlainNumber(input, true) {
			return SlotValue{}, false
		}
		f, err := strconv.ParseFloat(input, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
			return SlotValue{}, false
		}
		return NumberValue(f), true

	case slot == SlotAge:
		if !isPlainNumber(input, false) {
			return SlotValue{}, false
		}
		n, err := strconv.Atoi(input)
		if err != nil || n <= 0 || n >= 150 {
			return SlotValue{}, false
		}
		return NumberValue(float64(n)), true

	default:
		if input == "" {
			return SlotValue{}, false
		}
		if IsSkipToken(input) {
			return NotAnswered, true
		}
		return TextValue(input), true
	}
}

// isPlainNumber reports whether input is ASCII digits with at most one
// decimal point when fraction is allowed.
func isPlainNumber(input string, fraction bool) bool {
	digits, dots := 0, 0
	for i := 0; i < len(input); i++ {
		switch c := input[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && fraction:
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

// RejectionKey returns the re-prompt key used when input for slot is rejected.
func RejectionKey(slot SlotName) string {
	if IsMeasurement(slot) {
		return "invalid_number"
	}
	return "invalid_input"
}

func valueFits(slot SlotName, v SlotValue) bool {
	switch {
	case IsMeasurement(slot):
		f, ok := v.Number()
		return v.IsNotAnswered() || (ok && f > 0)
	case slot == SlotAge:
		f, ok := v.Number()
		return ok && f > 0 && f < 150
	default:
		return v.IsValid()
	}
}
