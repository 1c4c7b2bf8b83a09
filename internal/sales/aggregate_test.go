package sales

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForPointMergesDuplicates(t *testing.T) {
	summaries := []PointSummary{
		{PointName: "A", Items: []LineItem{{Name: "Bread", Quantity: 2, TotalAmount: 200}}, TotalAmount: 200},
		{PointName: "A", Items: []LineItem{{Name: "Bread", Quantity: 3, TotalAmount: 300}}, TotalAmount: 300},
	}
	got := ForPoint("A", summaries)
	assert.Equal(t, PointSummary{
		PointName:   "A",
		Items:       []LineItem{{Name: "Bread", Quantity: 5, TotalAmount: 500}},
		TotalAmount: 500,
	}, got)
}

func TestForPointIgnoresUpstreamTotals(t *testing.T) {
	summaries := []PointSummary{
		{PointName: "A", Items: []LineItem{{Name: "Bun", Quantity: 1, TotalAmount: 50}}, TotalAmount: 999},
	}
	assert.Equal(t, int64(50), ForPoint("A", summaries).TotalAmount)
}

func TestAllPointsKeepsFirstOccurrenceOrder(t *testing.T) {
	summaries := []PointSummary{
		{PointName: "A", Items: []LineItem{{Name: "Bread", Quantity: 1, TotalAmount: 100}, {Name: "Cake", Quantity: 1, TotalAmount: 400}}},
		{PointName: "B", Items: []LineItem{{Name: "Bun", Quantity: 2, TotalAmount: 60}, {Name: "Bread", Quantity: 1, TotalAmount: 100}}},
	}
	got := AllPoints(summaries)
	require.Len(t, got.Items, 3)
	assert.Equal(t, AllPointsName, got.PointName)
	assert.Equal(t, []string{"Bread", "Cake", "Bun"}, []string{got.Items[0].Name, got.Items[1].Name, got.Items[2].Name})
	assert.Equal(t, float64(2), got.Items[0].Quantity)
	assert.Equal(t, int64(660), got.TotalAmount)
}

func TestGroupByPoint(t *testing.T) {
	summaries := []PointSummary{
		{PointName: "B", Items: []LineItem{{Name: "Bun", Quantity: 1, TotalAmount: 30}}},
		{PointName: "A", Items: []LineItem{{Name: "Bread", Quantity: 1, TotalAmount: 100}}},
		{PointName: "B", Items: []LineItem{{Name: "Bun", Quantity: 1, TotalAmount: 30}}},
	}
	got := GroupByPoint(summaries)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].PointName)
	assert.Equal(t, int64(60), got[0].TotalAmount)
	assert.Equal(t, "A", got[1].PointName)
}

func TestEmptyInputGivesEmptySummary(t *testing.T) {
	got := AllPoints(nil)
	assert.Empty(t, got.Items)
	assert.NotNil(t, got.Items)
	assert.Zero(t, got.TotalAmount)
}

// Aggregating the whole range equals aggregating any split of its days.
func TestAggregationIsPartitionIndependent(t *testing.T) {
	days := []DaySales{
		{Points: []PointSummary{{PointName: "A", Items: []LineItem{{Name: "Bread", Quantity: 2, TotalAmount: 200}}}}},
		{Points: []PointSummary{{PointName: "B", Items: []LineItem{{Name: "Cake", Quantity: 1, TotalAmount: 450}}}}},
		{Points: []PointSummary{{PointName: "A", Items: []LineItem{{Name: "Bread", Quantity: 3, TotalAmount: 300}, {Name: "Bun", Quantity: 4, TotalAmount: 120}}}}},
		{Points: nil},
	}
	whole := AllPoints(Flatten(days))

	for split := 0; split <= len(days); split++ {
		left := AllPoints(Flatten(days[:split]))
		right := AllPoints(Flatten(days[split:]))
		merged := AllPoints([]PointSummary{left, right})
		assert.Equal(t, whole.TotalAmount, merged.TotalAmount, "split %d", split)
		assert.ElementsMatch(t, whole.Items, merged.Items, "split %d", split)
	}

	perPoint := ForPoint("A", Flatten(days))
	assert.Equal(t, int64(620), perPoint.TotalAmount)
}

func TestWeighedQuantitiesMergeIdenticallyAcrossSplits(t *testing.T) {
	day := func(kg float64) PointSummary {
		return PointSummary{PointName: "A", Items: []LineItem{{Name: "Rye by weight", Quantity: kg, TotalAmount: 100}}}
	}
	days := []PointSummary{day(0.1), day(0.2), day(0.3)}

	whole := AllPoints(days)
	split := AllPoints([]PointSummary{day(0.1), AllPoints([]PointSummary{day(0.2), day(0.3)})})

	require.Len(t, whole.Items, 1)
	assert.Equal(t, 0.6, whole.Items[0].Quantity)
	assert.Equal(t, whole.Items, split.Items)
}
