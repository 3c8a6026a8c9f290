package conversation

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Proton-105/fitcoach-bot/internal/errors"
	"github.com/Proton-105/fitcoach-bot/internal/i18n"
	"github.com/Proton-105/fitcoach-bot/internal/plan"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) (*Engine, *i18n.Manager) {
	t.Helper()

	translations, err := i18n.Load("", i18n.LangEnglish)
	require.NoError(t, err)

	provider, err := plan.NewStaticProvider()
	require.NoError(t, err)

	return NewEngine(translations, provider, testLogger()), translations
}

// assertInvariants checks the session rules that must hold after every turn.
func assertInvariants(t *testing.T, s Session) {
	t.Helper()

	if s.CurrentFlow == FlowNone {
		assert.Empty(t, s.Slots)
		assert.Empty(t, s.CollectedSlots)
		return
	}

	require.LessOrEqual(t, len(s.CollectedSlots), len(weightLossSlots))
	assert.Equal(t, weightLossSlots[:len(s.CollectedSlots)], s.CollectedSlots)
	assert.Len(t, s.Slots, len(s.CollectedSlots))
	for _, name := range s.CollectedSlots {
		assert.Contains(t, s.Slots, name)
	}
}

// apply runs one turn and returns the state the caller would send next.
func apply(t *testing.T, e *Engine, s Session, utterance string) (Session, Reply) {
	t.Helper()

	reply, err := e.Respond(s, utterance)
	require.NoError(t, err)

	next := s
	if reply.NewState != nil {
		next = *reply.NewState
	}
	assertInvariants(t, next)
	return next, reply
}

func englishAtMenu() Session {
	s := NewSession()
	s.Language = LanguageEnglish
	return s
}

func midFlow(collected int) Session {
	values := []SlotValue{
		NumberValue(70),
		NumberValue(65),
		NumberValue(170),
		NotAnswered,
		NumberValue(30),
		TextValue("male"),
		TextValue("moderate"),
		TextValue("vegetarian"),
		TextValue("none"),
	}

	s := englishAtMenu()
	s.CurrentFlow = FlowWeightLoss
	for i := 0; i < collected; i++ {
		s.Slots[weightLossSlots[i]] = values[i]
		s.CollectedSlots = append(s.CollectedSlots, weightLossSlots[i])
	}
	return s
}

func TestScenarioA_LanguageSelection(t *testing.T) {
	e, _ := newTestEngine(t)

	next, reply := apply(t, e, NewSession(), "English")

	require.NotNil(t, reply.NewState)
	assert.Equal(t, LanguageEnglish, next.Language)
	assert.Equal(t, FlowNone, next.CurrentFlow)
	assert.Equal(t, "Great! I'll help you in English. 💚", reply.Message)
	assert.Equal(t, BranchLanguageSelected, reply.Branch)
	assert.True(t, reply.IsMainMenu)
}

func TestLanguageGate(t *testing.T) {
	e, _ := newTestEngine(t)

	testCases := []struct {
		name      string
		utterance string
		want      Language
	}{
		{name: "english name", utterance: "ENGLISH please", want: LanguageEnglish},
		{name: "english flag", utterance: "English 🇬🇧", want: LanguageEnglish},
		{name: "english code", utterance: " en ", want: LanguageEnglish},
		{name: "malayalam name", utterance: "Malayalam", want: LanguageMalayalam},
		{name: "malayalam script", utterance: "മലയാളം", want: LanguageMalayalam},
		{name: "india flag", utterance: "🇮🇳", want: LanguageMalayalam},
		{name: "malayalam code", utterance: "ml", want: LanguageMalayalam},
		{name: "english wins when both present", utterance: "english or malayalam", want: LanguageEnglish},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			next, _ := apply(t, e, NewSession(), tc.utterance)
			assert.Equal(t, tc.want, next.Language)
		})
	}

	t.Run("unrecognized input re-prompts", func(t *testing.T) {
		reply, err := e.Respond(NewSession(), "weight loss")
		require.NoError(t, err)

		assert.Nil(t, reply.NewState)
		assert.Equal(t, BranchLanguagePrompt, reply.Branch)
		assert.Equal(t, "Choose your language / ഭാഷ തിരഞ്ഞെടുക്കുക", reply.Message)
		assert.Equal(t, []string{"English 🇬🇧", "Malayalam 🇮🇳"}, reply.QuickReplies)
	})

	t.Run("exact code only", func(t *testing.T) {
		reply, err := e.Respond(NewSession(), "hello")
		require.NoError(t, err)
		assert.Equal(t, BranchLanguagePrompt, reply.Branch)
	})

	t.Run("malayalam greeting", func(t *testing.T) {
		_, reply := apply(t, e, NewSession(), "malayalam")
		assert.Equal(t, "മികച്ചത്! ഞാൻ മലയാളത്തിൽ നിങ്ങളെ സഹായിക്കും. 💚", reply.Message)
	})
}

func TestScenarioB_FlowSelection(t *testing.T) {
	e, _ := newTestEngine(t)

	next, reply := apply(t, e, englishAtMenu(), "Weight Loss")

	require.NotNil(t, reply.NewState)
	assert.Equal(t, FlowWeightLoss, next.CurrentFlow)
	assert.Empty(t, next.CollectedSlots)
	assert.Equal(t,
		"Great! Let's create your weight loss plan. I'll ask a few quick questions to personalize it for you. 💚\n\n"+
			"What's your current weight (in kg)? E.g., 75",
		reply.Message,
	)
	assert.Equal(t, BranchFlowStarted, reply.Branch)
}

func TestFlowSelection_Table(t *testing.T) {
	e, _ := newTestEngine(t)

	testCases := []struct {
		utterance string
		want      Flow
	}{
		{utterance: "weight gain", want: FlowWeightGain},
		{utterance: "Workouts", want: FlowWorkouts},
		{utterance: "Diet Questions", want: FlowDiet},
		{utterance: "ഭാരം കുറയ്ക്കൽ", want: FlowWeightLoss},
		{utterance: "ഭാരം വർദ്ധിപ്പിക്കൽ", want: FlowWeightGain},
		{utterance: "ഭക്ഷണ ചോദ്യങ്ങൾ", want: FlowDiet},
		{utterance: "വ്യായാമം", want: FlowWorkouts},
		{utterance: "weight gain or weight loss", want: FlowWeightLoss},
	}

	for _, tc := range testCases {
		t.Run(tc.utterance, func(t *testing.T) {
			next, _ := apply(t, e, englishAtMenu(), tc.utterance)
			assert.Equal(t, tc.want, next.CurrentFlow)
		})
	}

	t.Run("no match stays at menu", func(t *testing.T) {
		reply, err := e.Respond(englishAtMenu(), "hello there")
		require.NoError(t, err)

		assert.Nil(t, reply.NewState)
		assert.True(t, reply.IsMainMenu)
		assert.Equal(t, BranchInvalidFlow, reply.Branch)
		assert.Equal(t, "I didn't catch that. What would you like help with?", reply.Message)
	})

	t.Run("every flow uses the shared slot order", func(t *testing.T) {
		for _, flow := range MenuOrder {
			assert.Equal(t, weightLossSlots, e.flows[flow].Slots)
		}
	})
}

func TestScenarioC_PlanGeneration(t *testing.T) {
	e, _ := newTestEngine(t)

	next, reply := apply(t, e, midFlow(8), "none")

	require.NotNil(t, reply.NewState)
	assert.Equal(t, FlowNone, next.CurrentFlow)
	assert.Equal(t, LanguageEnglish, next.Language)
	assert.True(t, reply.IsPlan)
	assert.Equal(t, BranchPlan, reply.Branch)
	assert.Equal(t, "Here's your personalized plan:", reply.Message)

	require.NotNil(t, reply.Plan)
	targets := plan.ComputeTargets(plan.Metrics{WeightKg: 70, HeightCm: 170, AgeYears: 30, Activity: "moderate"})
	assert.Equal(t, targets.DailyCalories, reply.Plan.DailyCalories)
	assert.Equal(t, 2007, reply.Plan.DailyCalories)
	assert.Equal(t, 84, reply.Plan.DailyProtein)
}

func TestScenarioD_MedicalGate(t *testing.T) {
	e, _ := newTestEngine(t)

	states := map[string]Session{
		"at menu":   englishAtMenu(),
		"mid flow":  midFlow(3),
		"last slot": midFlow(8),
	}

	for name, s := range states {
		t.Run(name, func(t *testing.T) {
			reply, err := e.Respond(s, "I have Diabetes")
			require.NoError(t, err)

			assert.Nil(t, reply.NewState)
			assert.Equal(t, BranchMedical, reply.Branch)
			assert.Equal(t, []string{"Yes, connect me", "No thanks"}, reply.QuickReplies)
			assert.Contains(t, reply.Message, "not medical advice")
		})
	}

	t.Run("malayalam keyword", func(t *testing.T) {
		s := englishAtMenu()
		s.Language = LanguageMalayalam

		reply, err := e.Respond(s, "എനിക്ക് പ്രമേഹം ഉണ്ട്")
		require.NoError(t, err)
		assert.Equal(t, BranchMedical, reply.Branch)
		assert.Equal(t, []string{"അതെ, ബന്ധിപ്പിക്കുക", "നന്ദി, വേണ്ട"}, reply.QuickReplies)
	})

	t.Run("not reachable before language", func(t *testing.T) {
		reply, err := e.Respond(NewSession(), "diabetes")
		require.NoError(t, err)
		assert.Equal(t, BranchLanguagePrompt, reply.Branch)
	})
}

func TestHandoffGate(t *testing.T) {
	e, _ := newTestEngine(t)

	for _, utterance := range []string{"I want to talk to human", "Human Expert please", "Yes, connect me", "എഡ്മിൻ"} {
		t.Run(utterance, func(t *testing.T) {
			reply, err := e.Respond(midFlow(2), utterance)
			require.NoError(t, err)

			assert.Nil(t, reply.NewState)
			assert.Equal(t, BranchHandoff, reply.Branch)
			assert.Contains(t, reply.Message, "An expert will contact you soon")
		})
	}

	t.Run("medical wins over handoff", func(t *testing.T) {
		reply, err := e.Respond(englishAtMenu(), "talk to human about my heart")
		require.NoError(t, err)
		assert.Equal(t, BranchMedical, reply.Branch)
	})
}

func TestDeclineRepeatsCurrentQuestion(t *testing.T) {
	e, _ := newTestEngine(t)

	reply, err := e.Respond(midFlow(4), "No thanks")
	require.NoError(t, err)
	assert.Nil(t, reply.NewState)
	assert.Equal(t, BranchDeclined, reply.Branch)
	assert.Equal(t, "How old are you?", reply.Message)

	reply, err = e.Respond(englishAtMenu(), "no thanks")
	require.NoError(t, err)
	assert.True(t, reply.IsMainMenu)
	assert.Equal(t, "What would you like help with today?", reply.Message)
}

func TestScenarioE_InvalidNumber(t *testing.T) {
	e, _ := newTestEngine(t)

	s := midFlow(0)
	reply, err := e.Respond(s, "abc")
	require.NoError(t, err)

	assert.Nil(t, reply.NewState)
	assert.Equal(t, BranchSlotRejected, reply.Branch)
	assert.Equal(t, "Please enter a number only.", reply.Message)
	assert.Len(t, s.CollectedSlots, 0)
}

func TestRejectionIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)

	s := midFlow(4)
	before, err := json.Marshal(s)
	require.NoError(t, err)

	first, err := e.Respond(s, "two hundred")
	require.NoError(t, err)
	second, err := e.Respond(s, "two hundred")
	require.NoError(t, err)

	after, err := json.Marshal(s)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Nil(t, first.NewState)
	assert.Equal(t, "I didn't understand that. Please try again.", first.Message)
	assert.JSONEq(t, string(before), string(after))
}

func TestSlotCollection_FullConversation(t *testing.T) {
	e, _ := newTestEngine(t)

	s, _ := apply(t, e, NewSession(), "English 🇬🇧")
	s, _ = apply(t, e, s, "Weight Loss")

	answers := []struct {
		utterance  string
		wantPrompt string
	}{
		{utterance: "70", wantPrompt: "What's your target weight (in kg)? E.g., 65"},
		{utterance: "65.5", wantPrompt: "What's your height (in cm)? E.g., 170"},
		{utterance: "170", wantPrompt: "What's your wrist circumference (in cm)? Or type 'skip' to skip."},
		{utterance: "Skip", wantPrompt: "How old are you?"},
		{utterance: "30", wantPrompt: "What's your gender? (Reply: male, female, or other)"},
		{utterance: "Female", wantPrompt: "Activity level? (Reply: sedentary, light, moderate, or active)"},
		{utterance: "Moderate", wantPrompt: "Food preference? (Reply: vegetarian, non-vegetarian, or mixed)"},
		{utterance: "Mixed", wantPrompt: "Any food allergies? (E.g., peanuts, gluten) or 'none' if no allergies."},
	}

	for i, answer := range answers {
		var reply Reply
		before := s.Step()
		s, reply = apply(t, e, s, answer.utterance)

		assert.Equal(t, BranchSlotAccepted, reply.Branch, answer.utterance)
		assert.Equal(t, before+1, s.Step())
		assert.Equal(t, i+1, len(s.Slots))
		assert.Equal(t, answer.wantPrompt, reply.Message)
	}

	assert.Equal(t, NumberValue(65.5), s.Slots[SlotTargetWeight])
	assert.Equal(t, NotAnswered, s.Slots[SlotWrist])
	assert.Equal(t, TextValue("female"), s.Slots[SlotGender])

	s, reply := apply(t, e, s, "Peanuts")
	assert.True(t, reply.IsPlan)
	assert.Equal(t, FlowNone, s.CurrentFlow)
	assert.Equal(t, LanguageEnglish, s.Language)
}

func TestLanguageStickiness(t *testing.T) {
	e, _ := newTestEngine(t)

	s := midFlow(3)
	s.Language = LanguageMalayalam

	next, _ := apply(t, e, s, "english")
	assert.Equal(t, LanguageMalayalam, next.Language)

	restarted := e.Restart(next)
	require.NotNil(t, restarted.NewState)
	assert.Equal(t, LanguageMalayalam, restarted.NewState.Language)
}

func TestRestart(t *testing.T) {
	e, _ := newTestEngine(t)

	s := midFlow(5)
	reply := e.Restart(s)

	require.NotNil(t, reply.NewState)
	assertInvariants(t, *reply.NewState)
	assert.Equal(t, FlowNone, reply.NewState.CurrentFlow)
	assert.Equal(t, LanguageEnglish, reply.NewState.Language)
	assert.True(t, reply.IsMainMenu)
	assert.Equal(t, "Ready for another plan? Choose an option below! 💚", reply.Message)
	assert.Len(t, s.CollectedSlots, 5, "input session must not be modified")

	unset := e.Restart(NewSession())
	assert.Equal(t, BranchRestart, unset.Branch)
	assert.Equal(t, []string{"English 🇬🇧", "Malayalam 🇮🇳"}, unset.QuickReplies)
}

func TestDefensiveBranch_AllSlotsCollected(t *testing.T) {
	e, _ := newTestEngine(t)

	next, reply := apply(t, e, midFlow(9), "anything")
	assert.True(t, reply.IsPlan)
	assert.Equal(t, FlowNone, next.CurrentFlow)
}

func TestMissingMetricIsInternalError(t *testing.T) {
	e, _ := newTestEngine(t)

	s := midFlow(8)
	s.Slots[SlotCurrentWeight] = NotAnswered

	reply, err := e.Respond(s, "none")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInternal, apperrors.CodeOf(err))
	assert.ErrorIs(t, err, plan.ErrMissingMetric)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KeyPlanIncomplete, appErr.UserKey)
	assert.Equal(t, Reply{}, reply)
	assert.Equal(t, FlowWeightLoss, s.CurrentFlow)
}

func TestEmptyUtterance(t *testing.T) {
	e, _ := newTestEngine(t)

	for _, utterance := range []string{"", "   ", "\n\t"} {
		_, err := e.Respond(englishAtMenu(), utterance)
		assert.ErrorIs(t, err, ErrEmptyUtterance)
		assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
	}
}

func TestRespond_SanitizedStateIsReturned(t *testing.T) {
	e, _ := newTestEngine(t)

	s := englishAtMenu()
	s.Slots[SlotAge] = NumberValue(30)

	reply, err := e.Respond(s, "hello")
	require.NoError(t, err)
	require.NotNil(t, reply.NewState)
	assert.Empty(t, reply.NewState.Slots)
}

func TestTransitionRecorder(t *testing.T) {
	e, _ := newTestEngine(t)

	var recorded []string
	RegisterTransitionRecorder(func(from, to string) {
		recorded = append(recorded, from+"->"+to)
	})
	t.Cleanup(func() { RegisterTransitionRecorder(nil) })

	_, _ = apply(t, e, englishAtMenu(), "workouts")
	_, _ = apply(t, e, midFlow(8), "none")
	_ = e.Restart(midFlow(1))

	assert.Equal(t, []string{"none->workouts", "weight_loss->none", "weight_loss->none"}, recorded)
}

func TestMenu(t *testing.T) {
	e, _ := newTestEngine(t)

	options := e.Menu(LanguageEnglish)
	require.Len(t, options, 4)
	assert.Equal(t, FlowWeightLoss, options[0].ID)
	assert.Equal(t, "Weight Loss", options[0].Title)
	assert.Len(t, options[0].Benefits, 3)

	// Every card title selects its own flow.
	for _, lang := range []Language{LanguageEnglish, LanguageMalayalam} {
		for _, option := range e.Menu(lang) {
			flow, ok := MatchFlow(NormalizeUtterance(option.Title))
			require.True(t, ok, option.Title)
			assert.Equal(t, option.ID, flow)
		}
	}
}
