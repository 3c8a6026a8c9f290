package conversation

// validTransitions lists the flow changes the engine may perform.
var validTransitions = map[Flow][]Flow{
	FlowNone: {
		FlowWeightLoss,
		FlowWeightGain,
		FlowWorkouts,
		FlowDiet,
	},
}

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe flow transitions.
// It is meant to be called once during startup.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// IsTransitionAllowed reports whether moving from one flow to another is valid.
// Returning to the menu is always allowed.
func IsTransitionAllowed(from, to Flow) bool {
	if to == FlowNone {
		return true
	}

	for _, flow := range validTransitions[from] {
		if flow == to {
			return true
		}
	}

	return false
}

// FlowLabel names a flow for logs and metrics.
func FlowLabel(f Flow) string {
	if f == FlowNone {
		return "none"
	}
	return string(f)
}
