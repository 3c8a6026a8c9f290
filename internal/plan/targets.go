package plan

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Slot names the plan reads. They match the conversation slot order.
const (
	SlotCurrentWeight = "current_weight_kg"
	SlotHeight        = "height_cm"
	SlotAge           = "age"
	SlotActivity      = "activity_level"
)

const (
	DefaultActivityMultiplier = 1.55
	CalorieDeficit            = 500
	ProteinPerKg              = 1.2
)

// ErrMissingMetric is returned when a metric the formula needs was skipped or never collected.
var ErrMissingMetric = errors.New("plan: missing metric")

var activityMultipliers = map[string]float64{
	"sedentary": 1.2,
	"light":     1.375,
	"moderate":  1.55,
	"active":    1.725,
	"നിശ്ചലത":   1.2,
	"ഹൽകാ":      1.375,
	"മധ്യമം":    1.55,
	"സജീവം":     1.725,
}

// SlotSource exposes collected slot values by name.
type SlotSource interface {
	// Number returns the numeric value of a slot, false when absent, skipped or textual.
	Number(name string) (float64, bool)
	// Text returns the textual value of a slot, false when absent or skipped.
	Text(name string) (string, bool)
}

// Metrics are the inputs of the calorie formula.
type Metrics struct {
	WeightKg float64
	HeightCm float64
	AgeYears float64
	Activity string
}

// Targets are the computed daily budgets.
type Targets struct {
	BasalRate     float64
	TDEE          float64
	DailyCalories int
	DailyProtein  int
}

// MetricsFromSlots extracts Metrics from completed slots. A skipped activity
// level is allowed and later falls back to the default multiplier.
func MetricsFromSlots(src SlotSource) (Metrics, error) {
	if src == nil {
		return Metrics{}, fmt.Errorf("%w: no slots", ErrMissingMetric)
	}

	var m Metrics
	var ok bool

	if m.WeightKg, ok = src.Number(SlotCurrentWeight); !ok {
		return Metrics{}, fmt.Errorf("%w: %s", ErrMissingMetric, SlotCurrentWeight)
	}
	if m.HeightCm, ok = src.Number(SlotHeight); !ok {
		return Metrics{}, fmt.Errorf("%w: %s", ErrMissingMetric, SlotHeight)
	}
	if m.AgeYears, ok = src.Number(SlotAge); !ok {
		return Metrics{}, fmt.Errorf("%w: %s", ErrMissingMetric, SlotAge)
	}

	m.Activity, _ = src.Text(SlotActivity)

	return m, nil
}

// ActivityMultiplier maps an activity label to its TDEE multiplier.
// Unknown labels use DefaultActivityMultiplier.
func ActivityMultiplier(label string) float64 {
	if v, ok := activityMultipliers[strings.ToLower(strings.TrimSpace(label))]; ok {
		return v
	}
	return DefaultActivityMultiplier
}

// ComputeTargets applies the Mifflin-St Jeor equation with the male constant
// for every user; gender is not considered.
func ComputeTargets(m Metrics) Targets {
	basal := 10*m.WeightKg + 6.25*m.HeightCm - 5*m.AgeYears + 5
	tdee := basal * ActivityMultiplier(m.Activity)

	return Targets{
		BasalRate:     basal,
		TDEE:          tdee,
		DailyCalories: int(math.Floor(tdee - CalorieDeficit)),
		DailyProtein:  int(math.Floor(m.WeightKg * ProteinPerKg)),
	}
}
