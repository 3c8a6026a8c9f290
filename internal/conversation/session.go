// Package conversation implements the FitCoach dialogue: a language gate,
// medical and handoff gates, flow selection and slot collection ending in a
// generated plan. Session state is owned by the caller and passed in on every
// turn; the engine keeps no per-session data.
package conversation

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Flow identifies the active slot sequence. FlowNone means the user is at the main menu.
type Flow string

const (
	FlowNone       Flow = ""
	FlowWeightLoss Flow = "weight_loss"
	FlowWeightGain Flow = "weight_gain"
	FlowWorkouts   Flow = "workouts"
	FlowDiet       Flow = "diet"
)

// MarshalJSON encodes FlowNone as null.
func (f Flow) MarshalJSON() ([]byte, error) {
	if f == FlowNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(f))
}

// UnmarshalJSON accepts a string or null. Other JSON types decode as FlowNone.
func (f *Flow) UnmarshalJSON(data []byte) error {
	*f = Flow(decodeLenientString(data))
	return nil
}

// Language is the sticky session language.
type Language string

const (
	LanguageUnset     Language = ""
	LanguageEnglish   Language = "en"
	LanguageMalayalam Language = "ml"
)

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	return l == LanguageEnglish || l == LanguageMalayalam
}

// MarshalJSON encodes LanguageUnset as null.
func (l Language) MarshalJSON() ([]byte, error) {
	if l == LanguageUnset {
		return []byte("null"), nil
	}
	return json.Marshal(string(l))
}

// UnmarshalJSON accepts a string or null. Other JSON types decode as LanguageUnset.
func (l *Language) UnmarshalJSON(data []byte) error {
	*l = Language(decodeLenientString(data))
	return nil
}

// SlotName names one collected answer.
type SlotName string

const (
	SlotCurrentWeight SlotName = "current_weight_kg"
	SlotTargetWeight  SlotName = "target_weight_kg"
	SlotHeight        SlotName = "height_cm"
	SlotWrist         SlotName = "wrist_cm"
	SlotAge           SlotName = "age"
	SlotGender        SlotName = "gender"
	SlotActivityLevel SlotName = "activity_level"
	SlotFoodPref      SlotName = "food_pref"
	SlotAllergies     SlotName = "allergies"
)

// NotAnsweredText is the wire form of a skipped slot.
const NotAnsweredText = "N/A"

type slotKind uint8

const (
	kindInvalid slotKind = iota
	kindNumber
	kindText
	kindNotAnswered
)

// SlotValue is a number, a free-text answer or the not-answered sentinel.
// The zero value is invalid and is dropped by Normalize.
type SlotValue struct {
	kind   slotKind
	number float64
	text   string
}

// NotAnswered is stored when the user skips a slot.
var NotAnswered = SlotValue{kind: kindNotAnswered}

func NumberValue(v float64) SlotValue {
	return SlotValue{kind: kindNumber, number: v}
}

func TextValue(v string) SlotValue {
	return SlotValue{kind: kindText, text: v}
}

func (v SlotValue) Number() (float64, bool) {
	return v.number, v.kind == kindNumber
}

func (v SlotValue) Text() (string, bool) {
	return v.text, v.kind == kindText
}

func (v SlotValue) IsNotAnswered() bool {
	return v.kind == kindNotAnswered
}

func (v SlotValue) IsValid() bool {
	return v.kind != kindInvalid
}

func (v SlotValue) String() string {
	switch v.kind {
	case kindNumber:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	case kindText:
		return v.text
	case kindNotAnswered:
		return NotAnsweredText
	default:
		return ""
	}
}

// MarshalJSON writes a JSON number, a string, or "N/A".
func (v SlotValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindNumber:
		return json.Marshal(v.number)
	case kindText:
		return json.Marshal(v.text)
	case kindNotAnswered:
		return json.Marshal(NotAnsweredText)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON never fails: values that are neither numbers nor strings
// decode as invalid and are removed by Normalize.
func (v *SlotValue) UnmarshalJSON(data []byte) error {
	*v = SlotValue{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if s == NotAnsweredText {
			*v = NotAnswered
			return nil
		}
		*v = TextValue(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return nil
		}
		*v = NumberValue(f)
	}

	return nil
}

// Slots maps slot names to collected values.
type Slots map[SlotName]SlotValue

// Number implements plan.SlotSource.
func (s Slots) Number(name string) (float64, bool) {
	return s[SlotName(name)].Number()
}

// Text implements plan.SlotSource.
func (s Slots) Text(name string) (string, bool) {
	return s[SlotName(name)].Text()
}

// Session is the caller-held conversation state.
type Session struct {
	CurrentFlow    Flow       `json:"currentFlow"`
	Slots          Slots      `json:"slots"`
	CollectedSlots []SlotName `json:"collectedSlots"`
	Language       Language   `json:"user_language"`
}

// NewSession returns the implicit first-turn state.
func NewSession() Session {
	return Session{
		Slots:          Slots{},
		CollectedSlots: []SlotName{},
	}
}

// Step is the cursor into the active flow's slot order.
func (s Session) Step() int {
	return len(s.CollectedSlots)
}

// AtMenu reports whether no flow is active.
func (s Session) AtMenu() bool {
	return s.CurrentFlow == FlowNone
}

// Clone returns a deep copy with non-nil collections.
func (s Session) Clone() Session {
	out := Session{
		CurrentFlow:    s.CurrentFlow,
		Language:       s.Language,
		Slots:          make(Slots, len(s.Slots)),
		CollectedSlots: make([]SlotName, len(s.CollectedSlots)),
	}
	for k, v := range s.Slots {
		out.Slots[k] = v
	}
	copy(out.CollectedSlots, s.CollectedSlots)
	return out
}

// Normalize sanitizes caller-supplied state against the default flow table
// and reports whether anything was changed.
func (s *Session) Normalize() bool {
	return DefaultFlowTable().Normalize(s)
}

// ResetFlow returns to the main menu, keeping the language.
func (s *Session) ResetFlow() {
	s.CurrentFlow = FlowNone
	s.Slots = Slots{}
	s.CollectedSlots = []SlotName{}
}

func decodeLenientString(data []byte) string {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ""
	}
	return s
}
