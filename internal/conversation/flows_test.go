package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSlot(t *testing.T) {
	testCases := []struct {
		name   string
		slot   SlotName
		input  string
		wantOK bool
		want   SlotValue
	}{
		{name: "weight integer", slot: SlotCurrentWeight, input: "75", wantOK: true, want: NumberValue(75)},
		{name: "weight decimal", slot: SlotTargetWeight, input: "64.5", wantOK: true, want: NumberValue(64.5)},
		{name: "weight skip", slot: SlotCurrentWeight, input: "skip", wantOK: true, want: NotAnswered},
		{name: "wrist malayalam skip", slot: SlotWrist, input: "ഒഴിവാക്കുക", wantOK: true, want: NotAnswered},
		{name: "weight with unit", slot: SlotCurrentWeight, input: "12kg", wantOK: false},
		{name: "weight letters", slot: SlotHeight, input: "abc", wantOK: false},
		{name: "weight zero", slot: SlotHeight, input: "0", wantOK: false},
		{name: "weight negative", slot: SlotHeight, input: "-5", wantOK: false},
		{name: "weight infinity", slot: SlotHeight, input: "inf", wantOK: false},
		{name: "weight nan", slot: SlotHeight, input: "nan", wantOK: false},
		{name: "weight digit separator", slot: SlotCurrentWeight, input: "1_000", wantOK: false},
		{name: "weight exponent", slot: SlotCurrentWeight, input: "1e3", wantOK: false},
		{name: "weight hex float", slot: SlotCurrentWeight, input: "0x1p6", wantOK: false},
		{name: "weight explicit sign", slot: SlotCurrentWeight, input: "+70", wantOK: false},
		{name: "weight two points", slot: SlotHeight, input: "1.7.0", wantOK: false},
		{name: "weight bare point", slot: SlotHeight, input: ".", wantOK: false},
		{name: "weight leading point", slot: SlotWrist, input: ".5", wantOK: true, want: NumberValue(0.5)},
		{name: "weight no upper bound", slot: SlotCurrentWeight, input: "900", wantOK: true, want: NumberValue(900)},
		{name: "age valid", slot: SlotAge, input: "30", wantOK: true, want: NumberValue(30)},
		{name: "age lower bound", slot: SlotAge, input: "0", wantOK: false},
		{name: "age upper bound", slot: SlotAge, input: "150", wantOK: false},
		{name: "age max", slot: SlotAge, input: "149", wantOK: true, want: NumberValue(149)},
		{name: "age decimal", slot: SlotAge, input: "30.5", wantOK: false},
		{name: "age explicit sign", slot: SlotAge, input: "+30", wantOK: false},
		{name: "age digit separator", slot: SlotAge, input: "3_0", wantOK: false},
		{name: "age skip", slot: SlotAge, input: "skip", wantOK: false},
		{name: "gender free text", slot: SlotGender, input: "other", wantOK: true, want: TextValue("other")},
		{name: "activity any text", slot: SlotActivityLevel, input: "very active", wantOK: true, want: TextValue("very active")},
		{name: "allergies skip", slot: SlotAllergies, input: "skip", wantOK: true, want: NotAnswered},
		{name: "text empty", slot: SlotFoodPref, input: "", wantOK: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ValidateSlot(tc.slot, tc.input)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestRejectionKey(t *testing.T) {
	assert.Equal(t, "invalid_number", RejectionKey(SlotCurrentWeight))
	assert.Equal(t, "invalid_number", RejectionKey(SlotWrist))
	assert.Equal(t, "invalid_input", RejectionKey(SlotAge))
	assert.Equal(t, "invalid_input", RejectionKey(SlotGender))
}

func TestKeywordMatchers(t *testing.T) {
	assert.True(t, IsMedical("i'm pregnant"))
	assert.True(t, IsMedical("pregnancy diet"))
	assert.True(t, IsMedical("ശസ്ത്രക്രിയ കഴിഞ്ഞു"))
	assert.False(t, IsMedical("weight loss"))

	assert.True(t, IsHandoff("can i talk to agent"))
	assert.True(t, IsHandoff("വ്യക്തിയോട് സംസാരിക്കണം"))
	assert.False(t, IsHandoff("human"))

	assert.True(t, IsDecline("no thanks"))
	assert.False(t, IsDecline("no thanks, but tell me more"))

	_, ok := MatchFlow("workout")
	assert.False(t, ok)
}

func TestIsTransitionAllowed(t *testing.T) {
	testCases := []struct {
		name     string
		from     Flow
		to       Flow
		expected bool
	}{
		{name: "menu to weight loss", from: FlowNone, to: FlowWeightLoss, expected: true},
		{name: "menu to diet", from: FlowNone, to: FlowDiet, expected: true},
		{name: "flow back to menu", from: FlowWorkouts, to: FlowNone, expected: true},
		{name: "flow to flow invalid", from: FlowWeightLoss, to: FlowWeightGain, expected: false},
		{name: "unknown flow invalid", from: FlowNone, to: Flow("yoga"), expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsTransitionAllowed(tc.from, tc.to))
		})
	}
}

func TestSession_JSON(t *testing.T) {
	raw := `{
		"currentFlow": "weight_loss",
		"slots": {"current_weight_kg": 70, "target_weight_kg": "N/A", "height_cm": 170},
		"collectedSlots": ["current_weight_kg", "target_weight_kg", "height_cm"],
		"user_language": "ml"
	}`

	var s Session
	require.NoError(t, json.Unmarshal([]byte(raw), &s))

	assert.Equal(t, FlowWeightLoss, s.CurrentFlow)
	assert.Equal(t, LanguageMalayalam, s.Language)
	assert.Equal(t, NumberValue(70), s.Slots[SlotCurrentWeight])
	assert.True(t, s.Slots[SlotTargetWeight].IsNotAnswered())
	assert.False(t, s.Normalize())

	out, err := json.Marshal(NewSession())
	require.NoError(t, err)
	assert.JSONEq(t, `{"currentFlow":null,"slots":{},"collectedSlots":[],"user_language":null}`, string(out))

	var lenient Session
	require.NoError(t, json.Unmarshal([]byte(`{"currentFlow":42,"slots":{"age":true},"user_language":null}`), &lenient))
	assert.Equal(t, FlowNone, lenient.CurrentFlow)
	assert.False(t, lenient.Slots[SlotAge].IsValid())
}

func TestSession_Normalize(t *testing.T) {
	testCases := []struct {
		name          string
		in            Session
		wantFlow      Flow
		wantLang      Language
		wantCollected []SlotName
		wantChanged   bool
	}{
		{
			name:        "unknown language",
			in:          Session{Language: "fr"},
			wantLang:    LanguageUnset,
			wantChanged: true,
		},
		{
			name:        "unknown flow",
			in:          Session{Language: LanguageEnglish, CurrentFlow: "yoga", CollectedSlots: []SlotName{SlotCurrentWeight}},
			wantLang:    LanguageEnglish,
			wantChanged: true,
		},
		{
			name: "out of order prefix",
			in: Session{
				Language:       LanguageEnglish,
				CurrentFlow:    FlowDiet,
				Slots:          Slots{SlotCurrentWeight: NumberValue(70), SlotHeight: NumberValue(170)},
				CollectedSlots: []SlotName{SlotCurrentWeight, SlotHeight},
			},
			wantFlow:      FlowDiet,
			wantLang:      LanguageEnglish,
			wantCollected: []SlotName{SlotCurrentWeight},
			wantChanged:   true,
		},
		{
			name: "value of wrong kind",
			in: Session{
				Language:       LanguageEnglish,
				CurrentFlow:    FlowWeightLoss,
				Slots:          Slots{SlotCurrentWeight: TextValue("heavy")},
				CollectedSlots: []SlotName{SlotCurrentWeight},
			},
			wantFlow:      FlowWeightLoss,
			wantLang:      LanguageEnglish,
			wantCollected: []SlotName{},
			wantChanged:   true,
		},
		{
			name: "orphan slot dropped",
			in: Session{
				Language:       LanguageEnglish,
				CurrentFlow:    FlowWeightLoss,
				Slots:          Slots{SlotAge: NumberValue(30)},
				CollectedSlots: []SlotName{},
			},
			wantFlow:      FlowWeightLoss,
			wantLang:      LanguageEnglish,
			wantCollected: []SlotName{},
			wantChanged:   true,
		},
		{
			name:          "valid state untouched",
			in:            midFlow(2),
			wantFlow:      FlowWeightLoss,
			wantLang:      LanguageEnglish,
			wantCollected: []SlotName{SlotCurrentWeight, SlotTargetWeight},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.in.Clone()
			changed := s.Normalize()

			assert.Equal(t, tc.wantChanged, changed)
			assert.Equal(t, tc.wantFlow, s.CurrentFlow)
			assert.Equal(t, tc.wantLang, s.Language)
			if tc.wantCollected == nil {
				assert.Empty(t, s.CollectedSlots)
			} else {
				assert.Equal(t, tc.wantCollected, s.CollectedSlots)
			}
			assert.Len(t, s.Slots, len(s.CollectedSlots))
		})
	}
}
