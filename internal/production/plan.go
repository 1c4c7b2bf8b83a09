// Package production forecasts tomorrow's bake from recent sales and layers
// per-session blacklist and quantity overrides on top of the forecast.
package production

import (
	"math"
	"time"

	"github.com/breadline/backoffice/internal/daterange"
	"github.com/breadline/backoffice/internal/sales"
)

// LookbackDays is how far before the planning date sales history reaches.
const LookbackDays = 30

// PlanItem is one product's forecast at one point.
type PlanItem struct {
	Name      string `json:"name"`
	Demand    int64  `json:"demand"`
	Stock     int64  `json:"stock"`
	ToProduce int64  `json:"to_produce"`
}

// PointPlan is the forecast for one point.
type PointPlan struct {
	PointName      string     `json:"point_name"`
	Items          []PlanItem `json:"items"`
	TotalToProduce int64      `json:"total_to_produce"`
}

// Plan is the unadjusted forecast for a planning date.
type Plan struct {
	Date   daterange.Date `json:"date"`
	Point  string         `json:"point,omitempty"`
	Points []PointPlan    `json:"points"`
}

// StockLevels maps point -> product -> quantity on hand.
type StockLevels map[string]map[string]int64

func (s StockLevels) of(point, product string) int64 {
	if s == nil {
		return 0
	}
	return s[point][product]
}

// Lookback returns the sales window used to plan for date: the thirty days
// before it plus the date itself.
func Lookback(date daterange.Date) daterange.Range {
	return daterange.Range{From: date.AddDays(-LookbackDays), To: date}
}

type bucketKey struct {
	weekday time.Weekday
	product string
	point   string
}

type bucket struct {
	key    bucketKey
	weekly []float64
}

// BuildPlan forecasts demand for date from days of sales history. Each
// (point, product, weekday) series is indexed by week since the lookback
// start; a single week is averaged, longer series are extrapolated by a
// least-squares line. Only the planning date's weekday is kept. Without a
// point filter an all-points aggregate is appended.
func BuildPlan(days []sales.DaySales, date daterange.Date, point string, stocks StockLevels) Plan {
	start := Lookback(date).From
	order := make([]*bucket, 0)
	buckets := make(map[bucketKey]*bucket)
	for _, day := range days {
		week := start.DaysUntil(day.Day) / 7
		if week < 0 {
			continue
		}
		for _, summary := range day.Points {
			for _, item := range summary.Items {
				key := bucketKey{weekday: day.Day.Weekday(), product: item.Name, point: summary.PointName}
				b, ok := buckets[key]
				if !ok {
					b = &bucket{key: key}
					buckets[key] = b
					order = append(order, b)
				}
				for len(b.weekly) <= week {
					b.weekly = append(b.weekly, 0)
				}
				b.weekly[week] += item.Quantity
			}
		}
	}

	plan := Plan{Date: date, Point: point, Points: []PointPlan{}}
	index := make(map[string]int)
	for _, b := range order {
		if b.key.weekday != date.Weekday() {
			continue
		}
		if point != "" && b.key.point != point {
			continue
		}
		demand := Forecast(b.weekly)
		stock := stocks.of(b.key.point, b.key.product)
		item := PlanItem{
			Name:      b.key.product,
			Demand:    demand,
			Stock:     stock,
			ToProduce: max(0, demand-stock),
		}
		i, ok := index[b.key.point]
		if !ok {
			i = len(plan.Points)
			index[b.key.point] = i
			plan.Points = append(plan.Points, PointPlan{PointName: b.key.point})
		}
		plan.Points[i].Items = append(plan.Points[i].Items, item)
	}
	if point == "" && len(plan.Points) > 0 {
		plan.Points = append(plan.Points, aggregate(plan.Points))
	}
	for i := range plan.Points {
		plan.Points[i].TotalToProduce = sumToProduce(plan.Points[i].Items)
	}
	return plan
}

func aggregate(points []PointPlan) PointPlan {
	out := PointPlan{PointName: sales.AllPointsName}
	index := make(map[string]int)
	for _, p := range points {
		for _, item := range p.Items {
			i, ok := index[item.Name]
			if !ok {
				index[item.Name] = len(out.Items)
				out.Items = append(out.Items, PlanItem{Name: item.Name})
				i = len(out.Items) - 1
			}
			out.Items[i].Demand += item.Demand
			out.Items[i].Stock += item.Stock
			out.Items[i].ToProduce += item.ToProduce
		}
	}
	return out
}

func sumToProduce(items []PlanItem) int64 {
	var total int64
	for _, item := range items {
		total += item.ToProduce
	}
	return total
}

// Forecast predicts the next value of a weekly series, rounding half to even
// and never going below zero.
func Forecast(series []float64) int64 {
	n := len(series)
	if n == 0 {
		return 0
	}
	if n < 2 {
		return clamp(math.RoundToEven(series[0]))
	}
	var sumX, sumY float64
	for i, y := range series {
		sumX += float64(i)
		sumY += y
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)
	var num, den float64
	for i, y := range series {
		dx := float64(i) - meanX
		num += dx * (y - meanY)
		den += dx * dx
	}
	slope := num / den
	intercept := meanY - slope*meanX
	return clamp(math.RoundToEven(intercept + slope*float64(n)))
}

func clamp(v float64) int64 {
	if v < 0 {
		return 0
	}
	return int64(v)
}
