package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"diet-coach/internal/dietplan"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanTable(t *testing.T) {
	env := newTestEnv(t, "")
	plan := samplePlan()
	plan.Day4.Dinner = dietplan.MealDetail{Diet: "<b>Paneer</b> & salad"}

	stored, err := env.plans.Save(context.Background(), "client-<7>", "coach-a", plan)
	require.NoError(t, err)

	rec := serve(t, env, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/meal/plans/%d/table", stored.ID), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)

	assert.Equal(t, "client-<7>", doc.Find("#client").Text())

	headers := doc.Find("#meal-plan thead th")
	require.Equal(t, 8, headers.Length())
	assert.Equal(t, "Day", headers.First().Text())
	assert.Equal(t, "Early Morning", headers.Eq(1).Text())
	assert.Equal(t, "Post Dinner", headers.Last().Text())

	rows := doc.Find("#meal-plan tbody tr")
	require.Equal(t, 7, rows.Length())
	rows.Each(func(i int, row *goquery.Selection) {
		day, _ := row.Attr("data-day")
		assert.Equal(t, dietplan.DayKeys[i], day)
		assert.Equal(t, 7, row.Find("td").Length())
	})

	breakfast := doc.Find(`tr[data-day="1"] td[data-slot="breakfast"]`)
	assert.Equal(t, "Oats", breakfast.Find(".diet").Text())
	assert.Equal(t, "no sugar", breakfast.Find(".note").Text())

	lunch := doc.Find(`tr[data-day="1"] td[data-slot="lunch"]`)
	assert.Zero(t, lunch.Find(".note").Length())

	dinner := doc.Find(`tr[data-day="4"] td[data-slot="dinner"]`)
	assert.Equal(t, "<b>Paneer</b> & salad", dinner.Find(".diet").Text())
	assert.Zero(t, dinner.Find("b").Length())
}

func TestPlanTableMissing(t *testing.T) {
	env := newTestEnv(t, "")
	rec := serve(t, env, httptest.NewRequest(http.MethodGet, "/api/v1/meal/plans/42/table", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSlotLabel(t *testing.T) {
	assert.Equal(t, "Evening Snacks", slotLabel(dietplan.SlotEveningSnacks))
	assert.Equal(t, "Breakfast", slotLabel(dietplan.SlotBreakfast))
}
