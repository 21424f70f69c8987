package server

import (
	"embed"
	"html/template"
	"io"
	"strings"
	"time"

	"diet-coach/internal/dietplan"
)

//go:embed templates/*.html
var templatesFS embed.FS

var tableTemplate = template.Must(template.New("meal_table.html").
	Funcs(template.FuncMap{"slotLabel": slotLabel}).
	ParseFS(templatesFS, "templates/meal_table.html"))

type tableCell struct {
	Slot dietplan.MealSlot
	Diet string
	Note string
}

type tableRow struct {
	Key   string
	Meals []tableCell
}

type tableView struct {
	ID        int64
	ClientID  string
	CreatedBy string
	CreatedAt time.Time
	Slots     []dietplan.MealSlot
	Days      []tableRow
}

// renderPlanTable writes a day by meal-slot HTML table of a stored plan.
func renderPlanTable(w io.Writer, stored dietplan.StoredPlan, plan *dietplan.WeeklyMealPlan) error {
	view := tableView{
		ID:        stored.ID,
		ClientID:  stored.ClientID,
		CreatedBy: stored.CreatedBy,
		CreatedAt: stored.CreatedAt,
		Slots:     dietplan.MealSlots,
	}
	for _, day := range dietplan.DayKeys {
		row := tableRow{Key: day}
		daily := plan.Day(day)
		for _, slot := range dietplan.MealSlots {
			meal := daily.Meal(slot)
			row.Meals = append(row.Meals, tableCell{Slot: slot, Diet: meal.Diet, Note: meal.Note})
		}
		view.Days = append(view.Days, row)
	}
	return tableTemplate.Execute(w, view)
}

// slotLabel turns "evening-snacks" into "Evening Snacks".
func slotLabel(slot dietplan.MealSlot) string {
	words := strings.Split(string(slot), "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
