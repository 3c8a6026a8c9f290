package conversation

import (
	"log/slog"
	"strings"

	apperrors "github.com/Proton-105/fitcoach-bot/internal/errors"
	"github.com/Proton-105/fitcoach-bot/internal/plan"
)

// Branch names the step of the decision cascade that produced a reply.
type Branch string

const (
	BranchLanguagePrompt   Branch = "language_prompt"
	BranchLanguageSelected Branch = "language_selected"
	BranchMedical          Branch = "medical"
	BranchHandoff          Branch = "handoff"
	BranchDeclined         Branch = "handoff_declined"
	BranchFlowStarted      Branch = "flow_started"
	BranchInvalidFlow      Branch = "invalid_flow"
	BranchSlotRejected     Branch = "slot_rejected"
	BranchSlotAccepted     Branch = "slot_accepted"
	BranchPlan             Branch = "plan"
	BranchRestart          Branch = "restart"
	BranchPrompt           Branch = "prompt"
)

// ErrEmptyUtterance is returned for an empty or whitespace-only utterance.
var ErrEmptyUtterance = apperrors.NewValidationError("empty utterance")

// Lookup resolves a translation key for a language. An empty language means
// the default one.
type Lookup interface {
	Lookup(lang, key string) string
}

// Reply is the outcome of one turn. NewState is nil when the caller should
// resubmit its previous state unchanged.
type Reply struct {
	Message      string
	QuickReplies []string
	NewState     *Session
	IsMainMenu   bool
	IsPlan       bool
	Plan         *plan.Document
	Branch       Branch
}

// Engine runs the decision cascade. It is safe for concurrent use.
type Engine struct {
	lookup Lookup
	plans  plan.Provider
	flows  FlowTable
	log    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFlowTable replaces the default flow table.
func WithFlowTable(t FlowTable) Option {
	return func(e *Engine) {
		if len(t) > 0 {
			e.flows = t
		}
	}
}

// NewEngine builds an engine that reads strings from lookup and plans from plans.
func NewEngine(lookup Lookup, plans plan.Provider, log *slog.Logger, opts ...Option) *Engine {
	if log == nil {
		log = slog.Default()
	}

	e := &Engine{
		lookup: lookup,
		plans:  plans,
		flows:  DefaultFlowTable(),
		log:    log,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// NormalizeUtterance trims and lower-cases raw user text.
func NormalizeUtterance(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Respond processes one utterance against session. The session argument is
// never modified. Gates are evaluated in a fixed order: language, medical,
// handoff, flow selection, then slot collection.
func (e *Engine) Respond(session Session, utterance string) (Reply, error) {
	input := NormalizeUtterance(utterance)
	if input == "" {
		return Reply{}, ErrEmptyUtterance
	}

	s := session.Clone()
	dirty := e.flows.Normalize(&s)

	reply, err := e.dispatch(&s, input)
	if err != nil {
		return Reply{}, err
	}

	if reply.NewState == nil && dirty {
		reply.NewState = &s
	}

	e.log.Debug("turn processed",
		slog.String("branch", string(reply.Branch)),
		slog.String("flow", FlowLabel(s.CurrentFlow)),
		slog.Int("step", s.Step()),
	)

	return reply, nil
}

func (e *Engine) dispatch(s *Session, input string) (Reply, error) {
	if s.Language == LanguageUnset {
		lang, ok := DetectLanguage(input)
		if !ok {
			return e.languagePrompt(), nil
		}

		s.Language = lang
		return Reply{
			Message:    e.t(lang, "language_selected_"+string(lang)),
			NewState:   s,
			IsMainMenu: true,
			Branch:     BranchLanguageSelected,
		}, nil
	}

	lang := s.Language

	if IsMedical(input) {
		return Reply{
			Message:      e.t(lang, "medical_warning"),
			QuickReplies: []string{e.t(lang, "yes_handoff"), e.t(lang, "no_handoff")},
			Branch:       BranchMedical,
		}, nil
	}

	if IsHandoff(input) {
		return Reply{
			Message: e.t(lang, "handoff_message"),
			Branch:  BranchHandoff,
		}, nil
	}

	if IsDecline(input) {
		reply := e.Prompt(*s)
		reply.Branch = BranchDeclined
		return reply, nil
	}

	if s.AtMenu() {
		flow, ok := MatchFlow(input)
		if !ok {
			return Reply{
				Message:    e.t(lang, "invalid_flow"),
				IsMainMenu: true,
				Branch:     BranchInvalidFlow,
			}, nil
		}

		spec := e.flows[flow]
		e.transition(s, flow)
		s.Slots = Slots{}
		s.CollectedSlots = []SlotName{}

		message := e.t(lang, spec.IntroKey)
		if len(spec.Slots) > 0 {
			message += "\n\n" + e.t(lang, PromptKey(spec.Slots[0]))
		}

		return Reply{
			Message:  message,
			NewState: s,
			Branch:   BranchFlowStarted,
		}, nil
	}

	spec := e.flows[s.CurrentFlow]
	idx := s.Step()
	if idx >= len(spec.Slots) {
		return e.completeFlow(s)
	}

	slot := spec.Slots[idx]
	value, ok := ValidateSlot(slot, input)
	if !ok {
		return Reply{
			Message: e.t(lang, RejectionKey(slot)),
			Branch:  BranchSlotRejected,
		}, nil
	}

	s.Slots[slot] = value
	s.CollectedSlots = append(s.CollectedSlots, slot)

	if s.Step() == len(spec.Slots) {
		return e.completeFlow(s)
	}

	return Reply{
		Message:  e.t(lang, PromptKey(spec.Slots[s.Step()])),
		NewState: s,
		Branch:   BranchSlotAccepted,
	}, nil
}

func (e *Engine) completeFlow(s *Session) (Reply, error) {
	metrics, err := plan.MetricsFromSlots(s.Slots)
	if err != nil {
		return Reply{}, apperrors.NewIncompletePlanError(err)
	}

	if e.plans == nil {
		return Reply{}, apperrors.NewInternalError("generate plan: no provider configured", nil)
	}

	doc, err := e.plans.Generate(metrics)
	if err != nil {
		return Reply{}, apperrors.NewInternalError("generate plan", err)
	}

	e.transition(s, FlowNone)
	s.ResetFlow()

	return Reply{
		Message:  e.t(s.Language, "plan_intro"),
		NewState: s,
		IsPlan:   true,
		Plan:     doc,
		Branch:   BranchPlan,
	}, nil
}

// Restart clears the active flow and returns to the main menu. The language is kept.
func (e *Engine) Restart(session Session) Reply {
	s := session.Clone()
	e.flows.Normalize(&s)

	if s.CurrentFlow != FlowNone {
		e.transition(&s, FlowNone)
	}
	s.ResetFlow()

	if s.Language == LanguageUnset {
		reply := e.languagePrompt()
		reply.NewState = &s
		reply.Branch = BranchRestart
		return reply
	}

	return Reply{
		Message:    e.t(s.Language, "start_again"),
		NewState:   &s,
		IsMainMenu: true,
		Branch:     BranchRestart,
	}
}

// Prompt repeats the question for the current step without changing state:
// the language choice, the main menu, or the next slot.
func (e *Engine) Prompt(session Session) Reply {
	s := session.Clone()
	dirty := e.flows.Normalize(&s)

	var reply Reply
	switch {
	case s.Language == LanguageUnset:
		reply = e.languagePrompt()
	case s.AtMenu():
		reply = Reply{Message: e.t(s.Language, "main_menu"), IsMainMenu: true}
	default:
		spec := e.flows[s.CurrentFlow]
		if s.Step() < len(spec.Slots) {
			reply = Reply{Message: e.t(s.Language, PromptKey(spec.Slots[s.Step()]))}
		} else {
			reply = Reply{Message: e.t(s.Language, "main_menu"), IsMainMenu: true}
		}
	}

	reply.Branch = BranchPrompt
	if dirty {
		reply.NewState = &s
	}
	return reply
}

func (e *Engine) languagePrompt() Reply {
	return Reply{
		Message: e.t(LanguageUnset, "choose_language"),
		QuickReplies: []string{
			e.t(LanguageUnset, "language_btn_en"),
			e.t(LanguageUnset, "language_btn_ml"),
		},
		Branch: BranchLanguagePrompt,
	}
}

func (e *Engine) transition(s *Session, to Flow) {
	from := s.CurrentFlow
	if !IsTransitionAllowed(from, to) {
		e.log.Warn("unexpected flow transition",
			slog.String("from", FlowLabel(from)),
			slog.String("to", FlowLabel(to)),
		)
	}

	s.CurrentFlow = to
	transitionRecorder(FlowLabel(from), FlowLabel(to))
}

func (e *Engine) t(lang Language, key string) string {
	if e.lookup == nil {
		return key
	}
	return e.lookup.Lookup(string(lang), key)
}
