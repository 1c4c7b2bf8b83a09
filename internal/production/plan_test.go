package production

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breadline/backoffice/internal/daterange"
	"github.com/breadline/backoffice/internal/sales"
)

func TestForecast(t *testing.T) {
	cases := []struct {
		name   string
		series []float64
		want   int64
	}{
		{name: "empty", series: nil, want: 0},
		{name: "single week", series: []float64{7}, want: 7},
		{name: "half rounds to even", series: []float64{2.5}, want: 2},
		{name: "rising line", series: []float64{2, 4, 6}, want: 8},
		{name: "flat", series: []float64{5, 5, 5, 5}, want: 5},
		{name: "falling clamps at zero", series: []float64{9, 5, 1}, want: 0},
		{name: "padded zeros", series: []float64{0, 0, 10}, want: 13},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Forecast(tc.series))
		})
	}
}

func TestLookbackCoversThirtyOneDays(t *testing.T) {
	rng := Lookback(daterange.MustParse("2025-05-31"))
	assert.Equal(t, "2025-05-01", rng.From.String())
	assert.Equal(t, daterange.MaxFanoutDays, rng.Days())
}

func day(date string, points ...sales.PointSummary) sales.DaySales {
	return sales.DaySales{Day: daterange.MustParse(date), Points: points}
}

func point(name string, items ...sales.LineItem) sales.PointSummary {
	return sales.PointSummary{PointName: name, Items: items}
}

func item(name string, qty float64) sales.LineItem {
	return sales.LineItem{Name: name, Quantity: qty}
}

// Planning for Friday 2025-05-30: lookback starts Wednesday 2025-04-30, so
// Fridays fall into weeks 0..4.
func TestBuildPlanUsesPlanningWeekday(t *testing.T) {
	days := []sales.DaySales{
		day("2025-05-02", point("A", item("Bread", 10)), point("B", item("Bread", 4))),
		day("2025-05-09", point("A", item("Bread", 12))),
		day("2025-05-10", point("A", item("Cake", 50))),
		day("2025-05-16", point("A", item("Bread", 14), item("Bun", 3))),
	}
	stocks := StockLevels{"A": {"Bread": 5}}

	plan := BuildPlan(days, daterange.MustParse("2025-05-30"), "", stocks)
	require.Len(t, plan.Points, 3)

	a := plan.Points[0]
	assert.Equal(t, "A", a.PointName)
	require.Len(t, a.Items, 2)
	assert.Equal(t, PlanItem{Name: "Bread", Demand: 16, Stock: 5, ToProduce: 11}, a.Items[0])
	// Bun: weeks [0, 0, 3] -> slope 1.5, intercept -0.5 -> 4.
	assert.Equal(t, PlanItem{Name: "Bun", Demand: 4, Stock: 0, ToProduce: 4}, a.Items[1])
	assert.Equal(t, int64(15), a.TotalToProduce)

	b := plan.Points[1]
	assert.Equal(t, "B", b.PointName)
	assert.Equal(t, []PlanItem{{Name: "Bread", Demand: 4, ToProduce: 4}}, b.Items)

	all := plan.Points[2]
	assert.Equal(t, sales.AllPointsName, all.PointName)
	assert.Equal(t, PlanItem{Name: "Bread", Demand: 20, Stock: 5, ToProduce: 15}, all.Items[0])
	assert.Equal(t, int64(19), all.TotalToProduce)
}

func TestBuildPlanWithPointFilter(t *testing.T) {
	days := []sales.DaySales{
		day("2025-05-02", point("A", item("Bread", 10)), point("B", item("Bread", 4))),
	}
	plan := BuildPlan(days, daterange.MustParse("2025-05-30"), "B", nil)
	require.Len(t, plan.Points, 1)
	assert.Equal(t, "B", plan.Points[0].PointName)
}

func TestBuildPlanStockCoversDemand(t *testing.T) {
	days := []sales.DaySales{day("2025-05-02", point("A", item("Bread", 3)))}
	plan := BuildPlan(days, daterange.MustParse("2025-05-30"), "A", StockLevels{"A": {"Bread": 10}})
	require.Len(t, plan.Points, 1)
	assert.Equal(t, int64(0), plan.Points[0].Items[0].ToProduce)
}

func TestBuildPlanEmpty(t *testing.T) {
	plan := BuildPlan(nil, daterange.MustParse("2025-05-30"), "", nil)
	assert.Empty(t, plan.Points)
	assert.NotNil(t, plan.Points)
}
