package plan

import (
	_ "embed"
	"fmt"
	"os"

	validator "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed content/weight_loss.yaml
var weightLossContent []byte

// Provider turns metrics into a plan document.
type Provider interface {
	Generate(m Metrics) (*Document, error)
}

type content struct {
	Title       string        `yaml:"title" validate:"required"`
	Emoji       string        `yaml:"emoji" validate:"required"`
	Closing     string        `yaml:"closing" validate:"required"`
	MealPlan    []DayPlan     `yaml:"meal_plan" validate:"len=7,dive"`
	WorkoutPlan string        `yaml:"workout_plan" validate:"required"`
	GroceryList []GroceryItem `yaml:"grocery_list" validate:"required,min=1,dive"`
	Tips        []string      `yaml:"tips" validate:"required,min=1,dive,required"`
}

// StaticProvider fills the computed targets into fixed content that is the
// same for every user.
type StaticProvider struct {
	content content
}

// NewStaticProvider loads the embedded weight-loss content.
func NewStaticProvider() (*StaticProvider, error) {
	return ParseStaticProvider(weightLossContent)
}

// LoadStaticProvider reads plan content from a YAML file on disk.
func LoadStaticProvider(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: read content %s: %w", path, err)
	}
	return ParseStaticProvider(data)
}

// ParseStaticProvider parses and validates YAML plan content.
func ParseStaticProvider(data []byte) (*StaticProvider, error) {
	var c content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("plan: parse content: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return nil, fmt.Errorf("plan: validate content: %w", err)
	}

	return &StaticProvider{content: c}, nil
}

// Generate computes targets for m and returns a fresh document.
func (p *StaticProvider) Generate(m Metrics) (*Document, error) {
	if p == nil {
		return nil, fmt.Errorf("plan: provider not initialised")
	}

	targets := ComputeTargets(m)

	return &Document{
		Title:         p.content.Title,
		Emoji:         p.content.Emoji,
		DailyCalories: targets.DailyCalories,
		DailyProtein:  targets.DailyProtein,
		MealPlan:      cloneDays(p.content.MealPlan),
		WorkoutPlan:   p.content.WorkoutPlan,
		GroceryList:   append([]GroceryItem(nil), p.content.GroceryList...),
		Tips:          append([]string(nil), p.content.Tips...),
		Closing:       p.content.Closing,
	}, nil
}

func cloneDays(days []DayPlan) []DayPlan {
	out := make([]DayPlan, len(days))
	for i, day := range days {
		meals := make([]Meal, len(day.Meals))
		for j, meal := range day.Meals {
			meals[j] = Meal{
				Name:     meal.Name,
				Items:    append([]string(nil), meal.Items...),
				Calories: meal.Calories,
			}
		}
		out[i] = DayPlan{Day: day.Day, Meals: meals}
	}
	return out
}
