// Package sales turns per-day receipt batches from the backend into per-point
// and chain-wide product summaries.
package sales

import (
	"errors"

	"github.com/breadline/backoffice/internal/daterange"
)

// AllPointsName labels the synthetic summary that merges every point.
const AllPointsName = "Все точки"

// ErrFetchFailed is returned when a day could not be fetched after retries.
// The whole load is abandoned; no partial result is produced.
var ErrFetchFailed = errors.New("sales: fetch failed")

// LineItem is one product's sales within a summary. TotalAmount is in minor
// currency units.
type LineItem struct {
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	TotalAmount int64   `json:"total_amount"`
}

// PointSummary groups line items sold at one point. TotalAmount always equals
// the sum of its items' amounts.
type PointSummary struct {
	PointName   string     `json:"point_name"`
	Items       []LineItem `json:"items"`
	TotalAmount int64      `json:"total_amount"`
}

// Recompute resets TotalAmount from the items.
func (p *PointSummary) Recompute() {
	var total int64
	for _, item := range p.Items {
		total += item.TotalAmount
	}
	p.TotalAmount = total
}

// DaySales is what one fan-out step returned.
type DaySales struct {
	Day    daterange.Date `json:"day"`
	Points []PointSummary `json:"points"`
}

// Query selects a report.
type Query struct {
	Range daterange.Range
	Point string
}

// Report is the aggregated answer to a Query.
type Report struct {
	Range   daterange.Range `json:"range"`
	Point   string          `json:"point,omitempty"`
	Summary PointSummary    `json:"summary"`
	Points  []PointSummary  `json:"points"`
	Cached  bool            `json:"cached"`
}
