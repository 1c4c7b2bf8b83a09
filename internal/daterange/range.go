package daterange

import (
	"errors"
	"fmt"
	"iter"
	"time"
)

// MaxFanoutDays caps how many per-day requests one report may issue.
const MaxFanoutDays = 31

var (
	// ErrInvalidRange is returned when from is after to.
	ErrInvalidRange = errors.New("daterange: from is after to")
	// ErrRangeTooLarge is returned when a range exceeds the fan-out cap.
	ErrRangeTooLarge = errors.New("daterange: range too large")
)

// Range is an inclusive span of calendar days.
type Range struct {
	From Date `json:"from"`
	To   Date `json:"to"`
}

// Pair is one half-open request window [From, To) sent to the backend.
type Pair struct {
	From Date
	To   Date
}

// New validates and builds a Range.
func New(from, to Date) (Range, error) {
	if from.IsZero() || to.IsZero() {
		return Range{}, fmt.Errorf("%w: both bounds are required", ErrInvalidRange)
	}
	if from.After(to) {
		return Range{}, fmt.Errorf("%w: %s > %s", ErrInvalidRange, from, to)
	}
	return Range{From: from, To: to}, nil
}

// ParseRange reads both bounds in ISO format.
func ParseRange(from, to string) (Range, error) {
	f, err := Parse(from)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	t, err := Parse(to)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	return New(f, t)
}

// SingleDay is the range covering exactly d.
func SingleDay(d Date) Range {
	return Range{From: d, To: d}
}

// Month returns the first..last day of a "YYYY-MM" month.
func Month(value string) (Range, error) {
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return Range{}, fmt.Errorf("%w: month %q", ErrInvalidRange, value)
	}
	first := FromTime(t)
	last := FromTime(t.AddDate(0, 1, -1))
	return Range{From: first, To: last}, nil
}

// Days returns the number of days in the range, both ends included.
func (r Range) Days() int {
	return r.From.DaysUntil(r.To) + 1
}

// Contains reports whether d falls inside the range.
func (r Range) Contains(d Date) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// CheckLimit fails with ErrRangeTooLarge when the range spans more than max days.
func (r Range) CheckLimit(max int) error {
	if max > 0 && r.Days() > max {
		return fmt.Errorf("%w: %d days requested, at most %d allowed", ErrRangeTooLarge, r.Days(), max)
	}
	return nil
}

// Each yields every day of the range in ascending order.
func (r Range) Each() iter.Seq[Date] {
	return func(yield func(Date) bool) {
		for d := r.From; !d.After(r.To); d = d.AddDays(1) {
			if !yield(d) {
				return
			}
		}
	}
}

// Pairs splits the range into consecutive one-day request windows. The
// backend treats the upper bound as exclusive, so the inclusive To is moved
// one day forward first. A non-positive span produces the whole window once.
func (r Range) Pairs() iter.Seq[Pair] {
	end := r.To.AddDays(1)
	return func(yield func(Pair) bool) {
		if r.From.DaysUntil(end) <= 0 {
			yield(Pair{From: r.From, To: end})
			return
		}
		for cur := r.From; cur.Before(end); cur = cur.AddDays(1) {
			if !yield(Pair{From: cur, To: cur.AddDays(1)}) {
				return
			}
		}
	}
}

func (r Range) String() string {
	return r.From.String() + ".." + r.To.String()
}
