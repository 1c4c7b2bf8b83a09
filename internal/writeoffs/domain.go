// Package writeoffs records goods written off at a point: spoiled, damaged or
// otherwise removed from sale.
package writeoffs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/breadline/backoffice/internal/daterange"
)

var (
	// ErrNotFound is returned when a write-off id is unknown.
	ErrNotFound = errors.New("writeoffs: not found")
	// ErrInvalid wraps validation failures.
	ErrInvalid = errors.New("writeoffs: invalid input")
)

// Writeoff is one recorded write-off.
type Writeoff struct {
	ID       int64          `json:"id"`
	Date     daterange.Date `json:"date"`
	Point    string         `json:"point"`
	Product  string         `json:"product"`
	Quantity int64          `json:"quantity"`
	Reason   string         `json:"reason"`
}

// Validate trims text fields and checks every field is set.
func (w *Writeoff) Validate() error {
	w.Point = strings.TrimSpace(w.Point)
	w.Product = strings.TrimSpace(w.Product)
	w.Reason = strings.TrimSpace(w.Reason)
	switch {
	case w.Date.IsZero():
		return fmt.Errorf("%w: date is required", ErrInvalid)
	case w.Point == "":
		return fmt.Errorf("%w: point is required", ErrInvalid)
	case w.Product == "":
		return fmt.Errorf("%w: product is required", ErrInvalid)
	case w.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be > 0", ErrInvalid)
	case w.Reason == "":
		return fmt.Errorf("%w: reason is required", ErrInvalid)
	}
	return nil
}

// Filter narrows a listing. Zero fields match everything.
type Filter struct {
	Range *daterange.Range
	Point string
}

// Match reports whether w passes the filter. Range bounds are inclusive.
func (f Filter) Match(w Writeoff) bool {
	if f.Range != nil && !f.Range.Contains(w.Date) {
		return false
	}
	return f.Point == "" || f.Point == w.Point
}
