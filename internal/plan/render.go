package plan

import (
	"fmt"
	"strings"

	"github.com/Proton-105/fitcoach-bot/internal/i18n"
)

// RenderText renders doc as plain text for chat clients, showing the meals of
// a single day (1-based, clamped to the plan length).
func RenderText(doc *Document, tr i18n.Translator, day int) string {
	if doc == nil || tr == nil {
		return ""
	}

	day = ClampDay(doc, day)

	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n\n", doc.Emoji, doc.Title)

	b.WriteString(tr.T("daily_targets"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "• %s: %d kcal\n", tr.T("plan.daily_calories"), doc.DailyCalories)
	fmt.Fprintf(&b, "• %s: %dg\n", tr.T("plan.protein_target"), doc.DailyProtein)
	fmt.Fprintf(&b, "• %s\n\n", tr.T("plan.hydration"))

	if day > 0 {
		dayPlan := doc.MealPlan[day-1]
		fmt.Fprintf(&b, "%s: %s\n", tr.T("plan.meal_day"), dayPlan.Day)
		for _, meal := range dayPlan.Meals {
			fmt.Fprintf(&b, "%s (%d kcal)\n", meal.Name, meal.Calories)
			for _, item := range meal.Items {
				fmt.Fprintf(&b, "  ✓ %s\n", item)
			}
		}
		b.WriteString(tr.T("plan.meal_tip"))
		b.WriteString("\n\n")
	}

	b.WriteString(tr.T("workout_plan"))
	b.WriteString("\n")
	b.WriteString(strings.ReplaceAll(doc.WorkoutPlan, "**", ""))
	b.WriteString("\n")
	b.WriteString(tr.T("plan.no_gym"))
	b.WriteString("\n\n")

	b.WriteString(tr.T("grocery_list"))
	b.WriteString("\n")
	for _, item := range doc.GroceryList {
		fmt.Fprintf(&b, "• %s (%s): %s\n", item.Item, item.Amount, item.Price)
	}
	b.WriteString("\n")

	b.WriteString(tr.T("safety_tips"))
	b.WriteString("\n")
	for i, tip := range doc.Tips {
		fmt.Fprintf(&b, "%d. %s\n", i+1, tip)
	}
	b.WriteString("\n")

	b.WriteString(doc.Closing)

	return b.String()
}

// ClampDay bounds day to [1, doc.Days()]; it returns 0 for an empty plan.
func ClampDay(doc *Document, day int) int {
	days := doc.Days()
	if days == 0 {
		return 0
	}
	if day < 1 {
		return 1
	}
	if day > days {
		return days
	}
	return day
}
