package dietplan

import "strings"

// MealSlot names one of the fixed meal slots of a day.
type MealSlot string

const (
	SlotEarlyMorning  MealSlot = "early-morning"
	SlotBreakfast     MealSlot = "breakfast"
	SlotMidMeal       MealSlot = "mid-meal"
	SlotLunch         MealSlot = "lunch"
	SlotEveningSnacks MealSlot = "evening-snacks"
	SlotDinner        MealSlot = "dinner"
	SlotPostDinner    MealSlot = "post-dinner"
)

// MealSlots lists the slots in display order.
var MealSlots = []MealSlot{
	SlotEarlyMorning,
	SlotBreakfast,
	SlotMidMeal,
	SlotLunch,
	SlotEveningSnacks,
	SlotDinner,
	SlotPostDinner,
}

// DayKeys lists the day keys of a weekly plan in order.
var DayKeys = []string{"1", "2", "3", "4", "5", "6", "7"}

// MealDetail is the recommendation and annotation for one meal slot.
type MealDetail struct {
	Diet string `json:"diet"`
	Note string `json:"note"`
}

// DailyMealPlan holds every meal slot of a single day.
type DailyMealPlan struct {
	EarlyMorning  MealDetail `json:"early-morning"`
	Breakfast     MealDetail `json:"breakfast"`
	MidMeal       MealDetail `json:"mid-meal"`
	Lunch         MealDetail `json:"lunch"`
	EveningSnacks MealDetail `json:"evening-snacks"`
	Dinner        MealDetail `json:"dinner"`
	PostDinner    MealDetail `json:"post-dinner"`
}

// WeeklyMealPlan is the extraction target: seven days keyed "1" through "7".
type WeeklyMealPlan struct {
	Day1 DailyMealPlan `json:"1"`
	Day2 DailyMealPlan `json:"2"`
	Day3 DailyMealPlan `json:"3"`
	Day4 DailyMealPlan `json:"4"`
	Day5 DailyMealPlan `json:"5"`
	Day6 DailyMealPlan `json:"6"`
	Day7 DailyMealPlan `json:"7"`
}

// Meal returns the detail stored in slot, or nil for an unknown slot.
func (d *DailyMealPlan) Meal(slot MealSlot) *MealDetail {
	switch slot {
	case SlotEarlyMorning:
		return &d.EarlyMorning
	case SlotBreakfast:
		return &d.Breakfast
	case SlotMidMeal:
		return &d.MidMeal
	case SlotLunch:
		return &d.Lunch
	case SlotEveningSnacks:
		return &d.EveningSnacks
	case SlotDinner:
		return &d.Dinner
	case SlotPostDinner:
		return &d.PostDinner
	}
	return nil
}

// Day returns the plan for a day key ("1".."7"), or nil for an unknown key.
func (w *WeeklyMealPlan) Day(key string) *DailyMealPlan {
	switch key {
	case "1":
		return &w.Day1
	case "2":
		return &w.Day2
	case "3":
		return &w.Day3
	case "4":
		return &w.Day4
	case "5":
		return &w.Day5
	case "6":
		return &w.Day6
	case "7":
		return &w.Day7
	}
	return nil
}

// Each calls fn for all 49 entries, day by day in slot order.
func (w *WeeklyMealPlan) Each(fn func(day string, slot MealSlot, meal MealDetail)) {
	for _, day := range DayKeys {
		d := w.Day(day)
		for _, slot := range MealSlots {
			fn(day, slot, *d.Meal(slot))
		}
	}
}

// IsBlank reports whether no slot carries any diet or note text.
func (w *WeeklyMealPlan) IsBlank() bool {
	blank := true
	w.Each(func(_ string, _ MealSlot, m MealDetail) {
		if strings.TrimSpace(m.Diet) != "" || strings.TrimSpace(m.Note) != "" {
			blank = false
		}
	})
	return blank
}
