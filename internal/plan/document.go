// Package plan derives daily calorie and protein targets from collected
// metrics and bundles them with static plan content.
package plan

// Meal is a single named meal within a day.
type Meal struct {
	Name     string   `json:"name" yaml:"name" validate:"required"`
	Items    []string `json:"items" yaml:"items" validate:"required,min=1,dive,required"`
	Calories int      `json:"calories" yaml:"calories" validate:"gt=0"`
}

// DayPlan lists the meals of one day.
type DayPlan struct {
	Day   string `json:"day" yaml:"day" validate:"required"`
	Meals []Meal `json:"meals" yaml:"meals" validate:"required,min=1,dive"`
}

// GroceryItem is one line of the weekly grocery list.
type GroceryItem struct {
	Item   string `json:"item" yaml:"item" validate:"required"`
	Amount string `json:"amount" yaml:"amount" validate:"required"`
	Price  string `json:"price" yaml:"price" validate:"required"`
}

// Document is the generated plan. It is never mutated after Generate returns.
type Document struct {
	Title         string        `json:"title"`
	Emoji         string        `json:"emoji"`
	DailyCalories int           `json:"dailyCalories"`
	DailyProtein  int           `json:"dailyProtein"`
	MealPlan      []DayPlan     `json:"mealPlan"`
	WorkoutPlan   string        `json:"workoutPlan"`
	GroceryList   []GroceryItem `json:"groceryList"`
	Tips          []string      `json:"tips"`
	Closing       string        `json:"closing"`
}

// Days returns the number of days in the meal plan.
func (d *Document) Days() int {
	if d == nil {
		return 0
	}
	return len(d.MealPlan)
}
